package classify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/watchlog/internal/resilience"
	"github.com/sells-group/watchlog/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5" &&
			req.MaxTokens == 16 &&
			req.Temperature != nil && *req.Temperature == 0 &&
			len(req.Messages) == 1 && req.Messages[0].Content == "the prompt"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "News"}},
	}, nil)

	got, err := NewAnthropicCompleter(client, "claude-haiku-4-5", 0).Complete(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "News", got)
	client.AssertExpectations(t)
}

func TestAnthropicCompleter_PlainErrorPassesThrough(t *testing.T) {
	client := &mockAnthropic{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("bad key"))

	_, err := NewAnthropicCompleter(client, "m", 8).Complete(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestAnthropicCompleter_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		message   string
		rateLimit bool
		quota     bool
		transient bool
	}{
		{"rate limit", http.StatusTooManyRequests, "Number of requests has exceeded your rate limit", true, false, true},
		{"daily quota", http.StatusTooManyRequests, "You have reached your daily quota", true, true, true},
		{"overloaded", 529, "Overloaded", true, false, true},
		{"server error", http.StatusInternalServerError, "Internal error", false, false, true},
		{"auth", http.StatusUnauthorized, "invalid x-api-key", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"error","message":"` + tt.message + `"}}`))
			}))
			defer ts.Close()

			client := anthropic.NewClient("test-key", anthropic.WithBaseURL(ts.URL), anthropic.WithMaxRetries(0))
			_, err := NewAnthropicCompleter(client, "claude-haiku-4-5", 8).Complete(context.Background(), "p")
			require.Error(t, err)
			assert.Equal(t, tt.rateLimit, resilience.IsRateLimited(err))
			assert.Equal(t, tt.quota, resilience.IsQuotaExhausted(err))
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}
