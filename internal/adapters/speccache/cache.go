package speccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/erraggy/oastools/parser"
	"golang.org/x/sync/singleflight"

	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// maxSpecBytes bounds a single spec document fetch so a misconfigured
// docs_endpoint can't balloon gateway memory.
const maxSpecBytes = 16 << 20

// KV is the optional shared second tier behind the in-process cache. The
// Redis adapter satisfies it; a nil KV means single-instance operation.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Options groups dependencies for constructing a Cache.
type Options struct {
	// HTTPClient performs the spec fetches. Bootstrap hands in an
	// oauth2-wrapped client when the docs endpoints require credentials.
	HTTPClient *http.Client
	// TTL is how long a fetched document stays fresh. Zero means one hour.
	TTL time.Duration
	// FetchTimeout bounds a single docs_endpoint round trip.
	FetchTimeout time.Duration
	// KV, when non-nil, backs the cache with a tier shared across replicas.
	KV     KV
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache fetches and caches parsed OpenAPI documents keyed by logic module
// endpoint_name. Concurrent misses for the same module coalesce into a
// single fetch; parse failures are never cached, so the next request
// retries.
type Cache struct {
	httpClient   *http.Client
	ttl          time.Duration
	fetchTimeout time.Duration
	kv           KV
	logger       *slog.Logger
	now          func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*Document
}

// New constructs a Cache.
func New(opts Options) *Cache {
	c := &Cache{
		httpClient:   opts.HTTPClient,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		kv:           opts.KV,
		logger:       opts.Logger,
		now:          opts.Now,
		entries:      make(map[string]*Document),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = 10 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns the cached document for lm, fetching and parsing it on a miss
// or after TTL expiry. Concurrent callers for the same endpoint_name share a
// single fetch.
func (c *Cache) Get(ctx context.Context, lm model.LogicModule) (*Document, error) {
	if doc := c.fresh(lm.EndpointName); doc != nil {
		return doc, nil
	}

	v, err, _ := c.group.Do(lm.EndpointName, func() (any, error) {
		// A sibling caller may have populated the entry while this caller
		// waited on the flight gate.
		if doc := c.fresh(lm.EndpointName); doc != nil {
			return doc, nil
		}
		doc, err := c.load(ctx, lm)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[lm.EndpointName] = doc
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Invalidate drops the cached document for endpointName from both tiers so
// the next Get re-fetches.
func (c *Cache) Invalidate(ctx context.Context, endpointName string) {
	c.mu.Lock()
	delete(c.entries, endpointName)
	c.mu.Unlock()

	if c.kv != nil {
		if err := c.kv.Delete(ctx, kvKey(endpointName)); err != nil {
			c.logger.WarnContext(ctx, "spec cache kv delete failed",
				"logic_module", endpointName, "error", err)
		}
	}
}

func (c *Cache) fresh(endpointName string) *Document {
	c.mu.RLock()
	doc := c.entries[endpointName]
	c.mu.RUnlock()
	if doc == nil || c.now().After(doc.FetchedAt.Add(c.ttl)) {
		return nil
	}
	return doc
}

// kvEnvelope is the shared-tier record: the raw spec bytes plus when they
// were fetched, so every replica ages the document from the same instant.
type kvEnvelope struct {
	FetchedAt time.Time `json:"fetched_at"`
	Body      []byte    `json:"body"`
}

func kvKey(endpointName string) string { return "spec:" + endpointName }

// load resolves the raw spec bytes (shared tier first, then the module's
// docs_endpoint) and parses them.
func (c *Cache) load(ctx context.Context, lm model.LogicModule) (*Document, error) {
	if c.kv != nil {
		if doc, ok := c.loadFromKV(ctx, lm); ok {
			return doc, nil
		}
	}

	body, err := c.fetch(ctx, lm)
	if err != nil {
		return nil, err
	}

	fetchedAt := c.now()
	doc, err := c.parse(lm.EndpointName, body, fetchedAt)
	if err != nil {
		return nil, err
	}

	if c.kv != nil {
		env, merr := json.Marshal(kvEnvelope{FetchedAt: fetchedAt, Body: body})
		if merr == nil {
			merr = c.kv.Set(ctx, kvKey(lm.EndpointName), env, c.ttl)
		}
		if merr != nil {
			c.logger.WarnContext(ctx, "spec cache kv store failed",
				"logic_module", lm.EndpointName, "error", merr)
		}
	}
	return doc, nil
}

func (c *Cache) loadFromKV(ctx context.Context, lm model.LogicModule) (*Document, bool) {
	raw, err := c.kv.Get(ctx, kvKey(lm.EndpointName))
	if err != nil {
		return nil, false
	}
	var env kvEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.WarnContext(ctx, "spec cache kv envelope corrupt, refetching",
			"logic_module", lm.EndpointName, "error", err)
		return nil, false
	}
	if c.now().After(env.FetchedAt.Add(c.ttl)) {
		return nil, false
	}
	doc, err := c.parse(lm.EndpointName, env.Body, env.FetchedAt)
	if err != nil {
		return nil, false
	}
	return doc, true
}

func (c *Cache) fetch(ctx context.Context, lm model.LogicModule) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, lm.DocsEndpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpecUnavailable,
			fmt.Sprintf("build spec request for %q", lm.EndpointName))
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpecUnavailable,
			fmt.Sprintf("fetch spec for %q from %s", lm.EndpointName, lm.DocsEndpoint))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "close spec response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.SpecUnavailable(
			fmt.Sprintf("docs endpoint for %q returned status %d", lm.EndpointName, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpecUnavailable,
			fmt.Sprintf("read spec body for %q", lm.EndpointName))
	}
	return body, nil
}

func (c *Cache) parse(endpointName string, body []byte, fetchedAt time.Time) (*Document, error) {
	res, err := parser.ParseWithOptions(parser.WithBytes(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpecUnavailable,
			fmt.Sprintf("parse spec for %q", endpointName))
	}
	if len(res.Errors) > 0 {
		return nil, apperrors.Wrap(errors.Join(res.Errors...), apperrors.ErrCodeSpecUnavailable,
			fmt.Sprintf("spec for %q failed validation", endpointName))
	}
	doc := newDocument(endpointName, res, fetchedAt)
	if doc.paths == nil {
		return nil, apperrors.SpecUnavailable(
			fmt.Sprintf("spec for %q declares no paths", endpointName))
	}
	return doc, nil
}
