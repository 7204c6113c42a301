package api

import "encoding/json"

// Envelope is the uniform wrapper every non-streaming endpoint returns.
// Code zero is the only success discriminator; any other code is a
// business-level failure carrying Message and possibly partial Data.
type Envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}
