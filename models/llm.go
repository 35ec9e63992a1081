package models

import "encoding/json"

// Message is one chat turn sent to a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Function declares a structured-output schema the model must fill.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionOptions overrides provider defaults for one call. Zero values
// keep the provider's configuration.
type CompletionOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Temperature is a helper for building CompletionOptions inline.
func Temperature(t float64) *float64 { return &t }

// FunctionCall is the raw argument payload returned for a forced function call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}
