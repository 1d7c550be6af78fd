package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_DecodesEnvelope(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/users/1", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"1","name":"Ada"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	data, err := client.Request(context.Background(), http.MethodGet, "/users/1", nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": "1", "name": "Ada"}, data)
}

func TestRequest_CollectionEnvelope(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/users", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"1"},{"id":"2"}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	data, err := client.Request(context.Background(), http.MethodGet, "/users", nil)
	require.NoError(t, err)

	list, ok := data.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestRequest_NoContent(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/users/1", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	data, err := client.Request(context.Background(), http.MethodDelete, "/users/1", nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRequest_NotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/users/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found","message":"no such user"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Request(context.Background(), http.MethodGet, "/users/404", nil)
	require.Error(t, err)

	assert.True(t, IsNotFound(err))
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.NotNil(t, apiErr.Data)
}

func TestRequest_ServerErrorCarriesBody(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/users", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"invalid","message":"name required"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Request(context.Background(), http.MethodPost, "/users", map[string]any{})
	require.Error(t, err)

	assert.False(t, IsNotFound(err))
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestRequest_BearerAndRequestIDHeaders(t *testing.T) {
	var gotAuth, gotRequestID string
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		gotRequestID = req.Header.Get("X-Request-ID")
		w.Write([]byte(`{"data":null}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, WithTokenSource(NewStaticTokenSource("sekrit")))
	_, err := client.Request(context.Background(), http.MethodGet, "/ping", nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sekrit", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestRequest_SendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	r := chi.NewRouter()
	r.Post("/users", func(w http.ResponseWriter, req *http.Request) {
		gotContentType = req.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(req.Body)
		w.Write([]byte(`{"data":{"id":"1"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Request(context.Background(), http.MethodPost, "/users", map[string]any{"name": "X"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"name":"X"}`, string(gotBody))
}
