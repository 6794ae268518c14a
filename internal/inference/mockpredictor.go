package inference

import (
	"context"
	"encoding/json"
	"sync"
)

// MockPredictor is a Predictor for tests. It records every call and answers
// with Response or Err.
type MockPredictor struct {
	Response []json.RawMessage
	Err      error

	mu    sync.Mutex
	calls []File
}

// NewMockPredictor answers every call with the given JSON values.
func NewMockPredictor(values ...string) *MockPredictor {
	response := make([]json.RawMessage, len(values))
	for i, v := range values {
		response[i] = json.RawMessage(v)
	}
	return &MockPredictor{Response: response}
}

// NewMockPredictorWithError fails every call with err.
func NewMockPredictorWithError(err error) *MockPredictor {
	return &MockPredictor{Err: err}
}

func (m *MockPredictor) Predict(_ context.Context, file File) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, File{
		Name:    file.Name,
		Type:    file.Type,
		Content: append([]byte(nil), file.Content...),
	})
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockPredictor) Calls() []File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]File(nil), m.calls...)
}
