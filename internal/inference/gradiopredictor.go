package inference

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jo-hoe/ransomware-detector/internal/inference/gradio"
)

const DefaultEndpoint = "/predict"

// GradioPredictor sends files to a Gradio app as the only argument of one
// endpoint.
type GradioPredictor struct {
	client   *gradio.Client
	endpoint string
}

func NewGradioPredictor(client *gradio.Client, endpoint string) *GradioPredictor {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GradioPredictor{client: client, endpoint: endpoint}
}

func (p *GradioPredictor) Predict(ctx context.Context, file File) ([]json.RawMessage, error) {
	fileData, err := p.client.Upload(ctx, file.Name, file.Type, file.Content)
	if err != nil {
		return nil, p.classify(err)
	}
	data, err := p.client.Predict(ctx, p.endpoint, fileData)
	if err != nil {
		return nil, p.classify(err)
	}
	return data, nil
}

func (p *GradioPredictor) classify(err error) error {
	var eventErr *gradio.EventError
	if errors.As(err, &eventErr) {
		return &ServiceError{Message: "Error: " + eventErr.Error()}
	}
	// the space may have been restarted on another host, unless the caller
	// just went away
	if !errors.Is(err, context.Canceled) {
		p.client.Reset()
	}
	return &UnavailableError{Err: err}
}
