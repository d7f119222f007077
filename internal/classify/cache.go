// Package classify assigns each channel one label from a closed set, asking a
// text model at most once per channel and remembering the answer.
package classify

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/watchlog/internal/metrics"
	"github.com/sells-group/watchlog/internal/model"
	"github.com/sells-group/watchlog/internal/resilience"
)

// Cache classifies channels, consulting the Store before the Completer.
type Cache struct {
	store     *Store
	labels    *LabelSet
	completer Completer
	policy    Policy
	limiter   *rate.Limiter
	metrics   *metrics.Recorder

	hits  int
	calls int
}

// Option configures a Cache.
type Option func(*Cache)

// WithMinInterval spaces external calls at least d apart.
func WithMinInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMetrics records call outcomes and cache hits on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Cache) {
		c.metrics = rec
	}
}

// NewCache creates a Cache.
func NewCache(store *Store, labels *LabelSet, completer Completer, policy Policy, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		labels:    labels,
		completer: completer,
		policy:    policy.withDefaults(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Hits returns how many Classify calls were answered from the store.
func (c *Cache) Hits() int { return c.hits }

// Calls returns how many times the completer was invoked.
func (c *Cache) Calls() int { return c.calls }

// Store returns the underlying store.
func (c *Cache) Store() *Store { return c.store }

// Classify returns the label for channel. A cached channel never reaches the
// completer. Records without a resolved channel get the fallback label
// without a call and are not cached. The only errors returned are context
// cancellation and failures the completer reports as permanent.
func (c *Cache) Classify(ctx context.Context, channel string, digest model.ContentDigest) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" || channel == model.UnknownChannel {
		return c.labels.Fallback(), nil
	}

	if label, ok := c.store.Get(channel); ok {
		c.hits++
		c.metrics.CacheHit()
		return label, nil
	}

	digest.Channel = channel
	prompt := BuildPrompt(c.labels, digest)
	log := zap.L().With(zap.String("channel", channel))

	var malformed, throttled int
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "classify: wait for call slot")
		}

		c.calls++
		raw, err := c.completer.Complete(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return "", eris.Wrap(ctx.Err(), "classify: cancelled")
			}

			var wait time.Duration
			switch {
			case resilience.IsQuotaExhausted(err):
				c.metrics.ClassifyCall("quota")
				wait = c.policy.QuotaSleep
				throttled = 0
				log.Warn("classify: quota exhausted, pausing", zap.Duration("wait", wait), zap.Error(err))
			case resilience.IsRateLimited(err):
				c.metrics.ClassifyCall("rate_limited")
				throttled++
				wait = c.policy.RateLimitDelay(throttled)
				log.Warn("classify: rate limited, backing off",
					zap.Int("attempt", throttled), zap.Duration("wait", wait))
			case resilience.IsTransient(err):
				c.metrics.ClassifyCall("error")
				wait = c.policy.ErrorDelay
				log.Warn("classify: transient error, retrying", zap.Duration("wait", wait), zap.Error(err))
			default:
				c.metrics.ClassifyCall("error")
				return "", eris.Wrapf(err, "classify: channel %q", channel)
			}

			if err := c.policy.Sleep(ctx, wait); err != nil {
				return "", eris.Wrap(err, "classify: cancelled during backoff")
			}
			continue
		}

		if label, ok := c.labels.Normalize(raw); ok {
			c.metrics.ClassifyCall("ok")
			c.store.Put(channel, label)
			log.Debug("classify: labeled", zap.String("label", label))
			return label, nil
		}

		malformed++
		c.metrics.ClassifyCall("malformed")
		if malformed >= c.policy.MalformedAttempts {
			label := c.labels.Fallback()
			log.Warn("classify: no valid label, using fallback",
				zap.Int("attempts", malformed), zap.String("last_response", raw), zap.String("label", label))
			c.store.Put(channel, label)
			return label, nil
		}

		log.Debug("classify: unrecognized response, retrying", zap.String("response", raw), zap.Int("attempt", malformed))
		if err := c.policy.Sleep(ctx, c.policy.MalformedDelay); err != nil {
			return "", eris.Wrap(err, "classify: cancelled during retry")
		}
	}
}
