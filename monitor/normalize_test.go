package monitor_test

import (
	"testing"

	"blogwatch/models"
	"blogwatch/monitor"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifierPriority(t *testing.T) {
	tests := []struct {
		name       string
		raw        models.RawPost
		expectedID string
		tracked    bool
	}{
		{
			name:       "explicit id wins",
			raw:        models.RawPost{ID: "abc", Link: "https://example.com/post", Slug: "post"},
			expectedID: "abc",
			tracked:    true,
		},
		{
			name:       "link when id missing",
			raw:        models.RawPost{Link: "https://example.com/post", Slug: "post"},
			expectedID: "https://example.com/post",
			tracked:    true,
		},
		{
			name:       "slug as last resort",
			raw:        models.RawPost{Slug: "post"},
			expectedID: "post",
			tracked:    true,
		},
		{
			name:    "no identifier at all is skipped",
			raw:     models.RawPost{Title: "orphan"},
			tracked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, ok := monitor.Normalize(tt.raw, "Normal")
			assert.Equal(t, tt.tracked, ok)
			if tt.tracked {
				assert.Equal(t, tt.expectedID, post.ID)
			}
		})
	}
}

func TestNormalizeFingerprint(t *testing.T) {
	trending, ok := monitor.Normalize(models.RawPost{ID: "p1", Trending: true}, "Competitive")
	assert.True(t, ok)
	assert.True(t, trending.Fingerprint.Trending)
	assert.Equal(t, "Competitive", trending.Category)

	// Absent flag defaults to false
	plain, ok := monitor.Normalize(models.RawPost{ID: "p2"}, "Normal")
	assert.True(t, ok)
	assert.False(t, plain.Fingerprint.Trending)
}

func TestSkippedPostNeverMutatesState(t *testing.T) {
	raw := models.RawPost{Title: "no identifier"}

	_, ok := monitor.Normalize(raw, "Normal")
	assert.False(t, ok)

	// A skipped post never reaches detection, so state stays untouched
	notify, updated := monitor.Detect(nil, monitor.State{})
	assert.Empty(t, notify)
	assert.Empty(t, updated)
}
