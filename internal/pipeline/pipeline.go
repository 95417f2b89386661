package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Brownie44l1/inference-api/internal/config"
	"github.com/Brownie44l1/inference-api/internal/fetcher"
	"github.com/Brownie44l1/inference-api/internal/metrics"
	"github.com/Brownie44l1/inference-api/internal/model"
	"github.com/Brownie44l1/inference-api/internal/preprocess"
	"github.com/Brownie44l1/inference-api/internal/ranker"
	"github.com/rs/zerolog/log"
)

// Pipeline runs fetch, preprocess, infer and format for one task. It holds
// no per-request state and is safe to share between requests.
type Pipeline struct {
	task           string
	fetcher        fetcher.Fetcher
	runtime        *model.Runtime
	maxImagePixels int64
}

type Option func(*Pipeline)

// WithMaxImagePixels bounds the decoded and resized size of input images.
func WithMaxImagePixels(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxImagePixels = n
		}
	}
}

func New(task string, f fetcher.Fetcher, rt *model.Runtime, opts ...Option) (*Pipeline, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: no runtime", model.ErrConfig)
	}
	switch task {
	case config.TaskClassification:
		if f == nil {
			return nil, fmt.Errorf("%w: classification requires a fetcher", model.ErrConfig)
		}
		if len(rt.Labels()) == 0 {
			return nil, fmt.Errorf("%w: classification requires labels", model.ErrConfig)
		}
	case config.TaskRegression:
	default:
		return nil, fmt.Errorf("%w: unknown task %q", model.ErrConfig, task)
	}
	p := &Pipeline{task: task, fetcher: f, runtime: rt, maxImagePixels: preprocess.DefaultMaxPixels}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Task() string {
	return p.task
}

// Classify downloads the image at req.InputURL and returns the top
// n_predictions labels.
func (p *Pipeline) Classify(ctx context.Context, req ClassificationRequest) ([]ranker.Prediction, error) {
	if req.InputURL == "" {
		return nil, badRequest("input_url is required")
	}
	if req.NPredictions == nil {
		return nil, badRequest("n_predictions is required")
	}
	topN := *req.NPredictions
	if err := p.checkTopN(topN); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := p.fetcher.Fetch(ctx, req.InputURL)
	observe("fetch", start)
	if err != nil {
		return nil, err
	}
	return p.ClassifyBytes(raw, topN)
}

// ClassifyBytes classifies already downloaded image bytes.
func (p *Pipeline) ClassifyBytes(raw []byte, topN int) ([]ranker.Prediction, error) {
	if err := p.checkTopN(topN); err != nil {
		return nil, err
	}

	log.Info().Msg("Processing Image")
	start := time.Now()
	batch, err := preprocess.Image(raw, p.maxImagePixels)
	observe("preprocess", start)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("Generating Prediction")
	output, err := p.infer(batch)
	if err != nil {
		return nil, err
	}

	log.Info().Int("n", topN).Msg("Generating Top n predictions")
	start = time.Now()
	defer observe("format", start)
	return ranker.Rank(output, p.runtime.Labels(), topN)
}

func (p *Pipeline) checkTopN(topN int) error {
	if p.task != config.TaskClassification {
		return badRequest("image classification is not served by the %s model", p.task)
	}
	if n := len(p.runtime.Labels()); topN < 0 || topN > n {
		return fmt.Errorf("%w: n_predictions must be between 0 and %d, got %d", ranker.ErrTopN, n, topN)
	}
	return nil
}

// Regress runs the regression model on the 13 feature values in req.
func (p *Pipeline) Regress(_ context.Context, req RegressionRequest) (float64, error) {
	if p.task != config.TaskRegression {
		return 0, badRequest("regression is not served by the %s model", p.task)
	}
	if req.InputX == nil {
		return 0, badRequest("input_X is required")
	}

	log.Info().Msg("Processing input data")
	start := time.Now()
	batch, err := preprocess.Tabular(req.InputX)
	observe("preprocess", start)
	if err != nil {
		return 0, err
	}

	log.Info().Msg("Generating Prediction")
	output, err := p.infer(batch)
	if err != nil {
		return 0, err
	}

	start = time.Now()
	defer observe("format", start)
	return ranker.Scalar(output)
}

func (p *Pipeline) infer(batch model.Tensor) ([]float32, error) {
	start := time.Now()
	defer observe("infer", start)
	return p.runtime.Predictor().Predict(batch)
}

// Handle decodes a JSON request body for the configured task and returns the
// response envelope. It never returns a Go error: failures become non-200
// envelopes with an ErrorResponse body.
func (p *Pipeline) Handle(ctx context.Context, body []byte) Response {
	log.Info().Str("task", p.task).RawJSON("input", jsonOrString(body)).Msg("Input data")

	payload, err := p.dispatch(ctx, body)
	return p.respond(payload, err)
}

// HandleImage classifies uploaded image bytes and returns the envelope.
func (p *Pipeline) HandleImage(raw []byte, topN int) Response {
	predictions, err := p.ClassifyBytes(raw, topN)
	return p.respond(predictions, err)
}

// BadRequest builds a 400 envelope for input rejected before it reaches the
// pipeline, such as an undecodable transport body.
func (p *Pipeline) BadRequest(format string, args ...interface{}) Response {
	return p.respond(nil, badRequest(format, args...))
}

func (p *Pipeline) respond(payload interface{}, err error) Response {
	var resp Response
	if err != nil {
		resp = errorResponse(classify(err))
	} else {
		resp, err = encode(http.StatusOK, payload)
		if err != nil {
			resp = errorResponse(&Error{Kind: KindInternal, Status: http.StatusInternalServerError, Err: err})
		}
	}

	metrics.Incr(metrics.RequestCount, metrics.BuildTags(
		metrics.TagTask, p.task,
		metrics.TagStatus, strconv.Itoa(resp.StatusCode),
	))
	return resp
}

// HandleEvent handles an API Gateway style event whose body is a JSON string.
func (p *Pipeline) HandleEvent(ctx context.Context, event Event) Response {
	return p.Handle(ctx, []byte(event.Body))
}

func (p *Pipeline) dispatch(ctx context.Context, body []byte) (interface{}, error) {
	switch p.task {
	case config.TaskClassification:
		var req ClassificationRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, badRequest("invalid JSON: %v", err)
		}
		return p.Classify(ctx, req)
	default:
		var req RegressionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, badRequest("invalid JSON: %v", err)
		}
		prediction, err := p.Regress(ctx, req)
		if err != nil {
			return nil, err
		}
		return RegressionResponse{Message: SuccessMessage, Prediction: prediction}, nil
	}
}

func encode(status int, payload interface{}) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to serialize response: %w", err)
	}
	return Response{StatusCode: status, Body: string(body)}, nil
}

func errorResponse(e *Error) Response {
	event := log.Error()
	if e.Status < http.StatusInternalServerError {
		event = log.Warn()
	}
	event.Err(e.Err).Str("kind", string(e.Kind)).Int("status", e.Status).Msg("Request failed")

	body, _ := json.Marshal(ErrorResponse{Error: e.Kind, Message: e.Err.Error()})
	return Response{StatusCode: e.Status, Body: string(body)}
}

func observe(stage string, start time.Time) {
	metrics.Timing(metrics.StageLatency, start, metrics.BuildTags(metrics.TagStage, stage))
}

// jsonOrString keeps malformed bodies loggable.
func jsonOrString(body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
