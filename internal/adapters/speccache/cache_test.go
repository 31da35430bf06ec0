package speccache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmesh/meshgate/internal/data"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

const productSpecJSON = `{
  "swagger": "2.0",
  "info": {"title": "products", "version": "1.0.0"},
  "basePath": "/api",
  "paths": {
    "/product/": {
      "get": {"operationId": "product_list", "responses": {"200": {"description": "ok"}}},
      "post": {"operationId": "product_create", "responses": {"201": {"description": "created"}}}
    },
    "/product/{id}/": {
      "get": {"operationId": "product_read", "responses": {"200": {"description": "ok"}}}
    }
  }
}`

const productSpecYAML = `openapi: "3.0.0"
info:
  title: products
  version: "1.0.0"
paths:
  /product/:
    get:
      operationId: product_list
      responses:
        "200":
          description: ok
`

func specServer(t *testing.T, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testModule(docsURL string) model.LogicModule {
	return model.LogicModule{
		EndpointName: "products",
		Endpoint:     "http://products.internal",
		DocsEndpoint: docsURL,
	}
}

func TestCacheGetParsesAndIndexesOperations(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecJSON, &hits)

	c := New(Options{})
	doc, err := c.Get(context.Background(), testModule(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "/api", doc.BasePath)

	op, ok := doc.Operation("/product/", "POST")
	require.True(t, ok)
	assert.Equal(t, "product_create", op.OperationID)

	// Trailing-slash tolerant in both directions.
	_, ok = doc.Operation("/product", "GET")
	assert.True(t, ok)
	_, ok = doc.Operation("product/", "GET")
	assert.True(t, ok)

	_, ok = doc.Operation("/product/", "DELETE")
	assert.False(t, ok)
}

func TestCacheGetParsesYAMLSpec(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecYAML, &hits)

	c := New(Options{})
	doc, err := c.Get(context.Background(), testModule(srv.URL))
	require.NoError(t, err)

	_, ok := doc.Operation("/product/", "GET")
	assert.True(t, ok)
}

func TestCacheGetReusesFreshEntry(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecJSON, &hits)

	c := New(Options{})
	lm := testModule(srv.URL)
	for range 5 {
		_, err := c.Get(context.Background(), lm)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestCacheGetRefetchesAfterTTL(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecJSON, &hits)

	clock := data.NewFixedTimeProvider(time.Now())
	c := New(Options{TTL: time.Minute, Now: clock.Now})
	lm := testModule(srv.URL)

	_, err := c.Get(context.Background(), lm)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	_, err = c.Get(context.Background(), lm)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestCacheConcurrentMissesCoalesce(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(productSpecJSON))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{})
	lm := testModule(srv.URL)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), lm)
		}()
	}
	// Give all callers time to pile onto the flight gate before the
	// backend responds.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestCacheDoesNotCacheParseFailures(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, `{"not": "a spec"}`, &hits)

	c := New(Options{})
	lm := testModule(srv.URL)

	_, err := c.Get(context.Background(), lm)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeSpecUnavailable, appErr.Code)

	_, err = c.Get(context.Background(), lm)
	require.Error(t, err)
	assert.Equal(t, int64(2), hits.Load(), "failed parses must re-fetch, not cache")
}

func TestCacheUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{})
	_, err := c.Get(context.Background(), testModule(srv.URL))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeSpecUnavailable, appErr.Code)
}

type fakeKV struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	sets  int
}

func newFakeKV() *fakeKV { return &fakeKV{store: make(map[string][]byte)} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.store[key]
	if !ok {
		return nil, assert.AnError
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.store[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, key)
	return nil
}

func TestCacheSharedTierAvoidsRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecJSON, &hits)
	kv := newFakeKV()
	lm := testModule(srv.URL)

	// First replica fetches and publishes to the shared tier.
	first := New(Options{KV: kv})
	_, err := first.Get(context.Background(), lm)
	require.NoError(t, err)
	assert.Equal(t, 1, kv.sets)

	// A cold second replica hydrates from the shared tier without touching
	// the docs endpoint.
	second := New(Options{KV: kv})
	doc, err := second.Get(context.Background(), lm)
	require.NoError(t, err)
	_, ok := doc.Operation("/product/", "GET")
	assert.True(t, ok)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := specServer(t, productSpecJSON, &hits)
	kv := newFakeKV()

	c := New(Options{KV: kv})
	lm := testModule(srv.URL)

	_, err := c.Get(context.Background(), lm)
	require.NoError(t, err)

	c.Invalidate(context.Background(), lm.EndpointName)

	_, err = c.Get(context.Background(), lm)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}
