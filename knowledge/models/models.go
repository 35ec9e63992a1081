package models

import "time"

// DocChunk is one indexed slice of a document. JSON names double as the
// bleve field names.
type DocChunk struct {
	DocID       string    `json:"doc_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	PublishedAt string    `json:"published_at,omitempty"`
	ContentHash string    `json:"content_hash"`
	IngestedAt  time.Time `json:"ingested_at"`
	ChunkIndex  int       `json:"chunk_index"`
}

type DocInput struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	PublishedAt string `json:"published_at,omitempty"`
}

type IngestResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Vectors   int `json:"vectors"`
}

// SearchHit is one retrieved chunk. Score is the raw ranking score (BM25
// or fused RRF); Relevance is normalized to [0,1] for thresholding.
type SearchHit struct {
	DocID     string  `json:"doc_id"`
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Relevance float64 `json:"relevance"`
	Rank      int     `json:"rank"`
}

type Stats struct {
	Chunks  uint64 `json:"chunks"`
	Vectors int    `json:"vectors"`
	Path    string `json:"path"`
}
