package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestVideos_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/videos", r.URL.Path)
		assert.Equal(t, "snippet,contentDetails", r.URL.Query().Get("part"))
		assert.ElementsMatch(t, []string{"abc", "def"}, r.URL.Query()["id"])
		assert.False(t, r.URL.Query().Has("maxResults"), "maxResults cannot be combined with id")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id": "abc",
					"snippet": map[string]any{
						"title":                "Real Title",
						"channelTitle":         "Some Channel",
						"defaultAudioLanguage": "en",
						"defaultLanguage":      "de",
						"description":          "desc",
						"tags":                 []string{"a", "b"},
					},
					"contentDetails": map[string]any{"duration": "PT4M13S"},
				},
				{
					"id":      "def",
					"snippet": map[string]any{"title": "Other", "channelTitle": "Chan 2", "defaultLanguage": "fr"},
				},
			},
		})
	})

	videos, err := c.Videos(context.Background(), []string{"abc", "def"})
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, "abc", videos[0].ID)
	assert.Equal(t, "Real Title", videos[0].Title)
	assert.Equal(t, "Some Channel", videos[0].ChannelTitle)
	assert.Equal(t, "PT4M13S", videos[0].Duration)
	assert.Equal(t, "en", videos[0].Language())
	assert.Equal(t, []string{"a", "b"}, videos[0].Tags)

	assert.Equal(t, "fr", videos[1].Language())
	assert.Empty(t, videos[1].Duration)
}

func TestVideos_EmptyInput(t *testing.T) {
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})
	videos, err := c.Videos(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestVideos_TooManyIDs(t *testing.T) {
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})
	ids := strings.Split(strings.Repeat("x,", MaxIDsPerCall+1), ",")[:MaxIDsPerCall+1]
	_, err := c.Videos(context.Background(), ids)
	require.Error(t, err)
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": "request failed",
			"errors":  []map[string]any{{"reason": reason, "domain": "youtube", "message": "request failed"}},
		},
	})
}

func TestVideos_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		reason    string
		transient bool
		rateLimit bool
		quota     bool
	}{
		{"quota", http.StatusForbidden, "quotaExceeded", true, true, true},
		{"rate limit", http.StatusForbidden, "rateLimitExceeded", true, true, false},
		{"server error", http.StatusServiceUnavailable, "backendError", true, false, false},
		{"bad request", http.StatusBadRequest, "invalidParameter", false, false, false},
		{"forbidden", http.StatusForbidden, "forbidden", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.code, tt.reason)
			})
			_, err := c.Videos(context.Background(), []string{"abc"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, tt.rateLimit, resilience.IsRateLimited(err))
			assert.Equal(t, tt.quota, resilience.IsQuotaExhausted(err))
		})
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
}

func TestVideo_LanguageEmpty(t *testing.T) {
	assert.Empty(t, Video{}.Language())
}
