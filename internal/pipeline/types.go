package pipeline

const SuccessMessage = "Succesful Prediction"

type ClassificationRequest struct {
	InputURL     string `json:"input_url"`
	NPredictions *int   `json:"n_predictions"`
}

type RegressionRequest struct {
	InputX []float64 `json:"input_X"`
}

type RegressionResponse struct {
	Message    string  `json:"message"`
	Prediction float64 `json:"prediction"`
}

type ErrorResponse struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// Response is the serverless envelope. Body holds the JSON-encoded payload.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Event is the subset of an API Gateway proxy event the pipeline reads.
type Event struct {
	Body string `json:"body"`
}
