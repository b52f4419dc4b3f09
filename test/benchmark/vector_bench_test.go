package benchmark

import (
	"fmt"
	"testing"

	"github.com/dangtom700/lexindex/internal/vector"
)

// sampleCounts builds a token-count map with n distinct tokens, a third of
// which fail one of the filter gates.
func sampleCounts(n int) vector.TokenCount {
	counts := make(vector.TokenCount, n)
	for i := 0; i < n; i++ {
		switch i % 3 {
		case 0:
			counts[fmt.Sprintf("token%c%c", 'a'+i%26, 'a'+(i/26)%26)] = 1 + i%9
		case 1:
			counts[fmt.Sprintf("tok%da", i)] = 1 + i%9 // digit, fails alpha gate
		default:
			counts[fmt.Sprintf("word%c%c%c", 'a'+i%26, 'a'+(i/26)%26, 'a'+(i/676)%26)] = 1 + i%9
		}
	}
	return counts
}

func BenchmarkNorm(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		counts := sampleCounts(size)
		b.Run(fmt.Sprintf("tokens_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = vector.Norm(counts)
			}
		})
	}
}

func BenchmarkFilterWeight(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		counts := sampleCounts(size)
		norm := vector.Norm(counts)
		b.Run(fmt.Sprintf("tokens_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				weighted, err := vector.FilterWeight(counts, 14, 3, norm)
				if err != nil {
					b.Fatal(err)
				}
				_ = weighted
			}
		})
	}
}

func BenchmarkFromQuery(b *testing.B) {
	queries := map[string]string{
		"short":  "cat dog",
		"medium": "relational distance weighting over token count vectors",
		"long": "information retrieval weights each surviving token by its raw count " +
			"divided by the euclidean norm of the full unfiltered vector so that " +
			"filtering never changes the denominator of the surviving weights",
	}
	for name, query := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(query)))
			for i := 0; i < b.N; i++ {
				_ = vector.FromQuery(query)
			}
		})
	}
}
