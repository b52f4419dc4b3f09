package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dangtom700/lexindex/pkg/kafka"
)

// Stats is an aggregate view over the tailed event stream.
type Stats struct {
	Searches    int64 `json:"searches"`
	CacheHits   int64 `json:"cache_hits"`
	ZeroResults int64 `json:"zero_results"`
	Runs        int64 `json:"runs"`
	FailedRuns  int64 `json:"failed_runs"`
}

// Tailer consumes the event topics and keeps running aggregate counters,
// logging a summary at a fixed interval. It backs the events subcommand.
type Tailer struct {
	mu     sync.Mutex
	stats  Stats
	logger *slog.Logger
}

// NewTailer creates an empty Tailer.
func NewTailer() *Tailer {
	return &Tailer{
		logger: slog.Default().With("component", "event-tailer"),
	}
}

// Handle is a kafka.MessageHandler that folds one event into the counters.
func (t *Tailer) Handle(ctx context.Context, key, value []byte) error {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &probe); err != nil {
		t.logger.Warn("skipping undecodable event", "error", err)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch probe.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return nil
		}
		t.stats.Searches++
		if event.CacheHit {
			t.stats.CacheHits++
		}
		if event.TotalDocs == 0 {
			t.stats.ZeroResults++
		}
	case EventRunComplete:
		t.stats.Runs++
	case EventRunFailed:
		t.stats.Runs++
		t.stats.FailedRuns++
	}
	return nil
}

// Snapshot returns a copy of the current counters.
func (t *Tailer) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// LogLoop logs the aggregate counters every interval until ctx is done.
func (t *Tailer) LogLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := t.Snapshot()
			t.logger.Info("event stream stats",
				"searches", stats.Searches,
				"cache_hits", stats.CacheHits,
				"zero_results", stats.ZeroResults,
				"runs", stats.Runs,
				"failed_runs", stats.FailedRuns,
			)
		}
	}
}
