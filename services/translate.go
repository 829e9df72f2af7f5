package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Translator turns an english word into vietnamese.
type Translator interface {
	Translate(ctx context.Context, word string) (string, error)
}

// GoogleTranslator calls the public translate_a endpoint.
type GoogleTranslator struct {
	Endpoint string
	Source   string
	Target   string
	Client   *http.Client
}

func NewGoogleTranslator(endpoint string) *GoogleTranslator {
	return &GoogleTranslator{
		Endpoint: endpoint,
		Source:   "en",
		Target:   "vi",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *GoogleTranslator) Translate(ctx context.Context, word string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", t.Source)
	params.Set("tl", t.Target)
	params.Set("dt", "t")
	params.Set("q", word)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate %q: %w", word, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate %q: status %d", word, resp.StatusCode)
	}

	// The response is nested arrays: [[["translated","source",...], ...], ...]
	var body []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode translation: %w", err)
	}
	if len(body) == 0 {
		return "", errors.New("empty translation response")
	}

	var segments [][]interface{}
	if err := json.Unmarshal(body[0], &segments); err != nil {
		return "", fmt.Errorf("decode translation segments: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("translation not found")
	}
	return b.String(), nil
}

// CachedTranslator fronts a Translator with an in-process LRU and, when a
// client is given, a Redis cache shared between instances.
type CachedTranslator struct {
	next  Translator
	local *expirable.LRU[string, string]
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedTranslator(next Translator, redisClient *redis.Client, size int, ttl time.Duration, log logrus.FieldLogger) *CachedTranslator {
	return &CachedTranslator{
		next:  next,
		local: expirable.NewLRU[string, string](size, nil, ttl),
		redis: redisClient,
		ttl:   ttl,
		log:   log,
	}
}

func cacheKey(word string) string {
	return "translate:en:vi:" + strings.ToLower(strings.TrimSpace(word))
}

func (c *CachedTranslator) Translate(ctx context.Context, word string) (string, error) {
	key := cacheKey(word)
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}

	if c.redis != nil {
		v, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			c.local.Add(key, v)
			return v, nil
		case !errors.Is(err, redis.Nil):
			c.log.WithError(err).Warn("translation cache read failed")
		}
	}

	v, err := c.next.Translate(ctx, word)
	if err != nil {
		return "", err
	}

	c.local.Add(key, v)
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, v, c.ttl).Err(); err != nil {
			c.log.WithError(err).Warn("translation cache write failed")
		}
	}
	return v, nil
}

// NewRedisClient parses url and checks the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
