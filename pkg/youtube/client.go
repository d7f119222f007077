// Package youtube looks up video metadata through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/sells-group/watchlog/internal/resilience"
)

// MaxIDsPerCall is the API's limit on ids per videos.list request.
const MaxIDsPerCall = 50

// Client performs YouTube Data API operations.
type Client interface {
	Videos(ctx context.Context, ids []string) ([]Video, error)
}

// Video is the subset of a videos.list item the pipeline uses.
type Video struct {
	ID                   string
	Title                string
	ChannelTitle         string
	Duration             string
	DefaultAudioLanguage string
	DefaultLanguage      string
	Description          string
	Tags                 []string
}

// Language returns the spoken language of the video, preferring the audio
// track language over the metadata language.
func (v Video) Language() string {
	if v.DefaultAudioLanguage != "" {
		return v.DefaultAudioLanguage
	}
	return v.DefaultLanguage
}

// Option configures the client.
type Option func(*apiClient)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(c *apiClient) {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		c.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client. The API key is not attached to
// requests made through a custom client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *apiClient) {
		c.http = hc
	}
}

type apiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	svc     *yt.Service
}

// NewClient creates a YouTube Data API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	c := &apiClient{apiKey: apiKey}
	for _, o := range opts {
		o(c)
	}

	var clientOpts []option.ClientOption
	switch {
	case c.http != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(c.http))
	case apiKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	default:
		return nil, eris.New("youtube: api key required")
	}
	if c.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(c.baseURL))
	}

	svc, err := yt.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "youtube: create service")
	}
	c.svc = svc
	return c, nil
}

func (c *apiClient) Videos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxIDsPerCall {
		return nil, eris.Errorf("youtube: %d ids exceeds limit of %d per call", len(ids), MaxIDsPerCall)
	}

	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "youtube: videos.list")
		}
		return nil, eris.Wrap(classify(err), "youtube: videos.list")
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := Video{ID: item.Id}
		if s := item.Snippet; s != nil {
			v.Title = s.Title
			v.ChannelTitle = s.ChannelTitle
			v.DefaultAudioLanguage = s.DefaultAudioLanguage
			v.DefaultLanguage = s.DefaultLanguage
			v.Description = s.Description
			v.Tags = s.Tags
		}
		if cd := item.ContentDetails; cd != nil {
			v.Duration = cd.Duration
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// classify maps API failures onto the resilience error types. Quota and
// rate-limit reasons arrive as 403s, so they are checked before the status.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(err, 0)
		}
		return err
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return resilience.NewRateLimitError(err, true)
		case "rateLimitExceeded", "userRateLimitExceeded":
			return resilience.NewRateLimitError(err, false)
		}
	}
	return resilience.FromStatus(err, gerr.Code)
}
