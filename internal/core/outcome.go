package core

import (
	"time"

	"github.com/jo-hoe/ransomware-detector/internal/inference"
)

// Results shown for a verdict. The legitimate text does not follow the
// configured label, which is only used to match the model output.
const (
	LegitimateMessage = "legitimate"
	RansomwareMessage = "File is ransomware"
)

// UploadedFile is a file in transport form: its content is a data URI.
type UploadedFile struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	Content string `json:"content" validate:"required,startswith=data:"`
}

type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusServiceError Status = "service_error"
	StatusUnavailable  Status = "unavailable"
)

type FileInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Outcome is the status of a single scan, owned by the caller. Result is the
// verdict shown to the user and stays empty unless Status is succeeded.
type Outcome struct {
	ID         string                `json:"id"`
	Status     Status                `json:"status"`
	File       FileInfo              `json:"file"`
	Prediction *inference.Prediction `json:"prediction,omitempty"`
	Result     string                `json:"result,omitempty"`
	Message    string                `json:"message"`
	Cached     bool                  `json:"cached"`
	Duration   time.Duration         `json:"duration"`
}

func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}
