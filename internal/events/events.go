// Package events defines the run and search events the indexer can publish
// to Kafka, a buffered collector that publishes them without blocking the
// serving path, and a tailer that aggregates the event stream for the
// events subcommand.
package events

import "time"

type EventType string

const (
	EventRunComplete EventType = "run_complete"
	EventRunFailed   EventType = "run_failed"
	EventSearch      EventType = "search"
)

// RunEvent is published when a batch run finishes, successfully or not.
type RunEvent struct {
	Type      EventType `json:"type"`
	Kind      string    `json:"kind"`
	Documents int       `json:"documents"`
	TermRows  int       `json:"term_rows"`
	Failures  int       `json:"failures"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchEvent is published for each query served over HTTP.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalDocs int       `json:"total_docs"`
	Returned  int       `json:"returned"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
