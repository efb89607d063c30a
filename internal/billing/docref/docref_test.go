package docref

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	issued := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	ref := New(SeriesQuote, issued)
	require.Regexp(t, regexp.MustCompile(`^DEV-2608-[0-9A-F]{4}$`), ref)

	ref = New(SeriesInvoice, issued)
	require.Regexp(t, regexp.MustCompile(`^FAC-2608-[0-9A-F]{4}$`), ref)
}

func TestNewVariesSuffix(t *testing.T) {
	issued := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		seen[New(SeriesQuote, issued)] = struct{}{}
	}
	// 64 draws from a 65536-value space should essentially never all collide.
	require.Greater(t, len(seen), 1)
}
