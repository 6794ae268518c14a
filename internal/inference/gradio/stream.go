package gradio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxEventSize = 16 * 1024 * 1024

// ErrStreamClosed is returned when the result stream ends without a
// complete or error event.
var ErrStreamClosed = errors.New("result stream closed before completion")

// EventError is an error reported by the Gradio app itself, as opposed to a
// transport failure.
type EventError struct {
	Message string
}

func (e *EventError) Error() string {
	if e.Message == "" {
		return "gradio app reported an error"
	}
	return e.Message
}

type event struct {
	name string
	data string
}

// readResult consumes a server-sent event stream until the call completes.
func readResult(r io.Reader) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var current event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			current.data = strings.Join(data, "\n")
			data = data[:0]
			done, result, err := handleEvent(current)
			if done {
				return result, err
			}
			current = event{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			current.name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result stream: %w", err)
	}
	// flush an event that was not terminated by a blank line
	if current.name != "" || len(data) > 0 {
		current.data = strings.Join(data, "\n")
		if done, result, err := handleEvent(current); done {
			return result, err
		}
	}
	return nil, ErrStreamClosed
}

func handleEvent(e event) (bool, []json.RawMessage, error) {
	switch e.name {
	case "complete":
		var result []json.RawMessage
		if err := json.Unmarshal([]byte(e.data), &result); err != nil {
			return true, nil, fmt.Errorf("failed to decode result: %w", err)
		}
		return true, result, nil
	case "error":
		return true, nil, &EventError{Message: errorMessage(e.data)}
	default:
		// generating, heartbeat and unnamed events carry no final result
		return false, nil, nil
	}
}

func errorMessage(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return ""
	}
	var message string
	if err := json.Unmarshal([]byte(data), &message); err == nil {
		return message
	}
	var object struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &object); err == nil {
		if object.Error != "" {
			return object.Error
		}
		if object.Message != "" {
			return object.Message
		}
	}
	return data
}
