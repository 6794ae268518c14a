// Package inference submits files to the hosted ransomware classifier and
// turns its untyped answers into a Prediction or a typed error.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultLegitimateLabel = "legitimate"
	errorMarker            = "Error"
)

// DefaultClassificationFields lists the keys that may carry the verdict, in
// order of preference.
var DefaultClassificationFields = []string{"classification", "prediction"}

// File is a decoded upload ready to be sent to the model.
type File struct {
	Name    string
	Type    string
	Content []byte
}

// Predictor relays a file to the remote model and returns its raw output.
type Predictor interface {
	Predict(ctx context.Context, file File) ([]json.RawMessage, error)
}

// Prediction is a successful verdict. Details holds the mapping returned by
// the model, unmodified.
type Prediction struct {
	Details        map[string]any `json:"details"`
	Classification string         `json:"classification"`
	Legitimate     bool           `json:"legitimate"`
}

// ServiceError means the model answered, but with an error.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// UnavailableError means the model could not be reached or the call did not
// complete.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("inference service unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Classifier interprets model output.
type Classifier struct {
	Fields          []string
	LegitimateLabel string
}

func NewClassifier(fields []string, legitimateLabel string) Classifier {
	if len(fields) == 0 {
		fields = DefaultClassificationFields
	}
	if legitimateLabel == "" {
		legitimateLabel = DefaultLegitimateLabel
	}
	return Classifier{Fields: fields, LegitimateLabel: legitimateLabel}
}

// Parse inspects the first output value. A string containing "Error" is a
// ServiceError, a mapping is a Prediction. A string holding a JSON object is
// decoded as a mapping.
func (c Classifier) Parse(data []json.RawMessage) (*Prediction, error) {
	if len(data) == 0 {
		return nil, &ServiceError{Message: "Error: empty response from inference service"}
	}
	first := data[0]

	var text string
	if err := json.Unmarshal(first, &text); err == nil {
		if strings.Contains(text, errorMarker) {
			return nil, &ServiceError{Message: text}
		}
		first = json.RawMessage(text)
	}

	var details map[string]any
	if err := json.Unmarshal(first, &details); err != nil || details == nil {
		return nil, &ServiceError{Message: fmt.Sprintf("Error: unexpected response from inference service: %s", truncate(string(data[0]), 120))}
	}

	classification := c.classification(details)
	return &Prediction{
		Details:        details,
		Classification: classification,
		Legitimate:     classification == c.LegitimateLabel,
	}, nil
}

func (c Classifier) classification(details map[string]any) string {
	for _, field := range c.Fields {
		if value, ok := details[field]; ok {
			if s, ok := value.(string); ok {
				return s
			}
			return fmt.Sprint(value)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
