package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoData is returned when a tool result carries neither data nor an error.
var ErrNoData = errors.New("tool result has no data")

// SourceID identifies an evidence source the engine can consult.
type SourceID string

const (
	SourceLocalKB              SourceID = "local_knowledge_base"
	SourceWebSearch            SourceID = "web_search"
	SourceFinance              SourceID = "finance"
	SourceWeather              SourceID = "weather"
	SourceTransport            SourceID = "transport"
	SourceMultimodalIngest     SourceID = "multimodal_ingest"
	SourceTime                 SourceID = "time"
	SourceFinanceWebExtraction SourceID = "finance_web_extraction"
	SourceAttachments          SourceID = "attachments"
)

// RoutableSources is the closed set a router may select from.
var RoutableSources = []SourceID{
	SourceLocalKB,
	SourceWebSearch,
	SourceFinance,
	SourceWeather,
	SourceTransport,
	SourceMultimodalIngest,
	SourceTime,
}

// IsRoutable reports whether id belongs to RoutableSources.
func IsRoutable(id SourceID) bool {
	for _, s := range RoutableSources {
		if s == id {
			return true
		}
	}
	return false
}

// ToolResult is the outcome of one tool call. Data and Error are mutually
// exclusive; a result with neither is a failure.
type ToolResult struct {
	Tool      SourceID        `json:"tool"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Success builds a data-bearing result from any JSON-marshalable payload.
func Success(tool SourceID, payload any) ToolResult {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Failure(tool, err)
	}
	return ToolResult{Tool: tool, Data: raw, FetchedAt: time.Now().UTC()}
}

// Failure builds an error-bearing result.
func Failure(tool SourceID, err error) ToolResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ToolResult{Tool: tool, Error: msg, FetchedAt: time.Now().UTC()}
}

// OK reports whether the result carries usable data.
func (r ToolResult) OK() bool {
	if r.Error != "" {
		return false
	}
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// Err returns the failure as an error, or nil when OK.
func (r ToolResult) Err() error {
	if r.OK() {
		return nil
	}
	if r.Error != "" {
		return errors.New(r.Error)
	}
	return ErrNoData
}

// Decode unmarshals the payload into v.
func (r ToolResult) Decode(v any) error {
	if !r.OK() {
		return r.Err()
	}
	return json.Unmarshal(r.Data, v)
}

// ErrCacheMiss is returned by cache stores when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")
