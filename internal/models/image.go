package models

import "time"

// GenerationRequest is the normalized input for one image-generation batch.
// Built once per inbound call and discarded after dispatch.
type GenerationRequest struct {
	Prompt         string
	Count          int
	ResponseFormat string
}

// CallOutcome is the settled result of a single upstream call. Exactly one
// of B64JSON or Reason is populated.
type CallOutcome struct {
	B64JSON string
	Reason  string
	failed  bool
}

// Fulfilled wraps a successfully generated image payload.
func Fulfilled(b64 string) CallOutcome {
	return CallOutcome{B64JSON: b64}
}

// Rejected wraps a per-call failure reason.
func Rejected(reason string) CallOutcome {
	return CallOutcome{Reason: reason, failed: true}
}

// OK reports whether the call settled with an image payload.
func (o CallOutcome) OK() bool {
	return !o.failed
}

// BatchResult holds one outcome per requested attempt, no more, no fewer.
type BatchResult []CallOutcome

// Fulfilled returns the successful payloads in batch order.
func (b BatchResult) Fulfilled() []string {
	out := make([]string, 0, len(b))
	for _, o := range b {
		if o.OK() {
			out = append(out, o.B64JSON)
		}
	}
	return out
}

// Exhausted reports whether every call in the batch was rejected.
func (b BatchResult) Exhausted() bool {
	for _, o := range b {
		if o.OK() {
			return false
		}
	}
	return len(b) > 0
}

// FirstReason returns the first rejection reason, if any.
func (b BatchResult) FirstReason() string {
	for _, o := range b {
		if !o.OK() {
			return o.Reason
		}
	}
	return ""
}

// ImageData represents a single generated image payload.
type ImageData struct {
	B64JSON string `json:"b64_json"`
}

// ImageResponse wraps generated images along with creation metadata.
type ImageResponse struct {
	Created time.Time
	Data    []ImageData
}
