package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// FromFile reads a token-count file: a flat JSON object mapping token
// strings to non-negative integer counts.
func FromFile(path string) (TokenCount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading token file %s: %w", path, err)
	}
	var counts TokenCount
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	for token, count := range counts {
		if count < 0 {
			return nil, fmt.Errorf("token file %s: negative count %d for token %q", path, count, token)
		}
	}
	return counts, nil
}

// FromQuery turns a raw query string into a TokenCount: lowercased, split on
// anything that is not a letter, counted. The filter gates do the rest; no
// stemming or stop-word handling happens here.
func FromQuery(query string) TokenCount {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	counts := make(TokenCount, len(words))
	for _, word := range words {
		counts[word]++
	}
	return counts
}
