package swaggerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/openmesh/meshgate/internal/domain/auth"
	"github.com/openmesh/meshgate/internal/domain/model"
	apperrors "github.com/openmesh/meshgate/internal/errors"
)

func targetFor(endpoint string) Target {
	return Target{Module: model.LogicModule{EndpointName: "products", Endpoint: endpoint}}
}

func TestDoInjectsAuthAndSerializesBody(t *testing.T) {
	orgID := uuid.New()
	var got *http.Request
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"product_uuid":"u1","name":"X"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{})
	resp, err := c.Do(context.Background(), targetFor(srv.URL), Operation{
		Service: "products",
		Path:    "/product/",
		Method:  http.MethodPost,
		Data:    map[string]any{"name": "X"},
	}, domainauth.Context{RawToken: "tok-123", OrgID: &orgID})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	assert.Equal(t, orgID.String(), got.Header.Get("X-Forwarded-Org"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "/product/", got.URL.Path)
	assert.Equal(t, map[string]any{"name": "X"}, gotBody)
}

func TestDoAppendsPKSegmentAndQuery(t *testing.T) {
	var gotURL *url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{})
	_, err := c.Do(context.Background(), targetFor(srv.URL), Operation{
		Service: "products",
		Path:    "/product/",
		Method:  http.MethodGet,
		PK:      "u1",
		Query:   url.Values{"aggregate": {"true"}},
	}, domainauth.Context{})
	require.NoError(t, err)

	assert.Equal(t, "/product/u1/", gotURL.Path)
	assert.Equal(t, "true", gotURL.Query().Get("aggregate"))
}

func TestDoPassesBackendErrorsThroughVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":["This field is required."]}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{})
	resp, err := c.Do(context.Background(), targetFor(srv.URL), Operation{
		Service: "products", Path: "/product/", Method: http.MethodPost,
	}, domainauth.Context{})
	require.NoError(t, err, "4xx is a response, not a transport error")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, resp.IsSuccess())
	assert.JSONEq(t, `{"name":["This field is required."]}`, string(resp.Content))
}

func TestDoMapsUnreachableBackendToBackendError(t *testing.T) {
	c := New(Options{})
	_, err := c.Do(context.Background(), targetFor("http://127.0.0.1:1"), Operation{
		Service: "products", Path: "/product/", Method: http.MethodGet,
	}, domainauth.Context{})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeBackendError, appErr.Code)
}

func TestDoMapsSlowBackendToBackendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := New(Options{Timeout: 50 * time.Millisecond})
	_, err := c.Do(context.Background(), targetFor(srv.URL), Operation{
		Service: "products", Path: "/product/", Method: http.MethodGet,
	}, domainauth.Context{})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeBackendTimeout, appErr.Code)
}

func TestDecodeUnwrapsListsAndEnvelopes(t *testing.T) {
	list, err := Response{Content: []byte(`[{"a":1},{"a":2}]`)}.Decode()
	require.NoError(t, err)
	assert.True(t, list.IsList)
	assert.Len(t, list.List, 2)

	envelope, err := Response{Content: []byte(`{"count":2,"results":[{"a":1},{"a":2}]}`)}.Decode()
	require.NoError(t, err)
	assert.True(t, envelope.IsList)
	assert.Len(t, envelope.List, 2)

	obj, err := Response{Content: []byte(`{"a":1}`)}.Decode()
	require.NoError(t, err)
	assert.False(t, obj.IsList)
	assert.Equal(t, map[string]any{"a": float64(1)}, obj.Object)

	empty, err := Response{}.Decode()
	require.NoError(t, err)
	assert.Nil(t, empty.Items())
}

func TestExtractFieldSupportsBareAndNestedExpressions(t *testing.T) {
	data := map[string]any{
		"product_uuid": "u1",
		"data":         map[string]any{"product_uuid": "u2"},
	}

	v, err := ExtractField(data, "product_uuid")
	require.NoError(t, err)
	assert.Equal(t, "u1", v)

	v, err = ExtractField(data, "data.product_uuid")
	require.NoError(t, err)
	assert.Equal(t, "u2", v)

	_, err = ExtractField(data, "")
	assert.Error(t, err)
}
