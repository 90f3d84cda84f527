package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// CachedSynthesizer memoizes synthesized speech by text for a TTL. Replies
// like greetings and error prompts repeat often.
type CachedSynthesizer struct {
	next  Synthesizer
	cache *cache.Cache
}

// NewCachedSynthesizer wraps next. A zero ttl disables caching.
func NewCachedSynthesizer(next Synthesizer, ttl time.Duration) Synthesizer {
	if ttl <= 0 {
		return next
	}
	return &CachedSynthesizer{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Synthesize returns the cached audio or calls through.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v.(media.Audio), nil
	}

	audio, err := c.next.Synthesize(ctx, text)
	if err != nil {
		return media.Audio{}, err
	}
	if !audio.Empty() {
		c.cache.SetDefault(key, audio)
	}
	return audio, nil
}

// Name returns the wrapped provider's name.
func (c *CachedSynthesizer) Name() string { return c.next.Name() }

// Len returns the number of cached entries.
func (c *CachedSynthesizer) Len() int { return c.cache.ItemCount() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
