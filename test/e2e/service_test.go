// Package e2e contains end-to-end tests against a running search service:
// an indexed corpus behind `lexindex serve`, optionally with Redis and
// Kafka.
//
// Run with:
//
//	go test -v -tags=e2e -timeout=60s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"
)

func serviceURL() string {
	if v := os.Getenv("E2E_SERVICE_URL"); v != "" {
		return v
	}
	return "http://localhost:8083"
}

func skipIfUnavailable(t *testing.T, client *http.Client) {
	t.Helper()
	resp, err := client.Get(serviceURL() + "/health/live")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	resp.Body.Close()
}

func TestServiceHealth(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	skipIfUnavailable(t, client)

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(serviceURL() + path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestSearchRoundTrip(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	skipIfUnavailable(t, client)

	query := os.Getenv("E2E_QUERY")
	if query == "" {
		query = "data"
	}

	target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", serviceURL(), url.QueryEscape(query))
	resp, err := client.Get(target)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Query   string `json:"query"`
		Results []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"results"`
		TookMs int64 `json:"took_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Query != query {
		t.Errorf("echoed query = %q, want %q", result.Query, query)
	}
	if len(result.Results) > 10 {
		t.Errorf("got %d results, asked for 10", len(result.Results))
	}
	for i := 1; i < len(result.Results); i++ {
		if result.Results[i].Score > result.Results[i-1].Score {
			t.Errorf("results not ordered by score: %v then %v",
				result.Results[i-1], result.Results[i])
		}
	}

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	skipIfUnavailable(t, client)

	resp, err := client.Get(serviceURL() + "/api/v1/cache/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if _, ok := stats["enabled"]; !ok {
		t.Error("cache stats response missing 'enabled'")
	}
}
