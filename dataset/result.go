package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the outcome class of an analysis or source read.
type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

// Result distinguishes a produced value from "no data" and from a failure,
// so callers branch on Status instead of inspecting the value.
type Result[T any] struct {
	Status Status
	Value  T
	Reason string
	Err    error
}

// Ok wraps a produced value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Status: StatusOK, Value: v}
}

// Empty reports that there was nothing to compute.
func Empty[T any](reason string) Result[T] {
	return Result[T]{Status: StatusEmpty, Reason: reason}
}

// Fail reports a failure with its cause.
func Fail[T any](err error) Result[T] {
	r := Result[T]{Status: StatusError, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

func (r Result[T]) IsOK() bool    { return r.Status == StatusOK }
func (r Result[T]) IsEmpty() bool { return r.Status == StatusEmpty }
func (r Result[T]) IsError() bool { return r.Status == StatusError }

// Get returns the value and whether it was produced.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.IsOK()
}

// MarshalJSON renders {"status", "value"} for Ok and {"status", "reason"} otherwise.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.IsOK() {
		return json.Marshal(struct {
			Status Status `json:"status"`
			Value  T      `json:"value"`
		}{r.Status, r.Value})
	}
	return json.Marshal(struct {
		Status Status `json:"status"`
		Reason string `json:"reason,omitempty"`
	}{r.Status, r.Reason})
}

// UnmarshalJSON restores a Result written by MarshalJSON. An error result gets a plain error
// built from its reason.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status Status          `json:"status"`
		Value  json.RawMessage `json:"value"`
		Reason string          `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Status {
	case StatusOK:
		var v T
		if len(raw.Value) > 0 {
			if err := json.Unmarshal(raw.Value, &v); err != nil {
				return err
			}
		}
		*r = Ok(v)
	case StatusEmpty:
		*r = Empty[T](raw.Reason)
	case StatusError:
		*r = Fail[T](errors.New(raw.Reason))
	default:
		return fmt.Errorf("unknown result status %q", raw.Status)
	}
	return nil
}
