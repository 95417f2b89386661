package main

import (
	"context"
	"encoding/base64"

	"github.com/Brownie44l1/inference-api/internal/app"
	"github.com/Brownie44l1/inference-api/internal/pipeline"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
)

func main() {
	// Cold start: the model and labels load once per container.
	a, err := app.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize inference lambda")
	}
	defer a.Close()

	lambda.Start(handler(a.Pipeline))
}

func handler(p *pipeline.Pipeline) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		body := req.Body
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return proxyResponse(p.BadRequest("body is not valid base64: %v", err)), nil
			}
			body = string(decoded)
		}

		return proxyResponse(p.HandleEvent(ctx, pipeline.Event{Body: body})), nil
	}
}

func proxyResponse(resp pipeline.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       resp.Body,
	}
}
