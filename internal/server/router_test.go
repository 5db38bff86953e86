package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MosinFAM/graphql-channels/internal/graph"
	"github.com/MosinFAM/graphql-channels/internal/models"
	"github.com/MosinFAM/graphql-channels/internal/observability"
	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store storage.Storage) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := log.New(io.Discard)
	bus := pubsub.NewMemory(logger)
	t.Cleanup(func() { bus.Close() })

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	resolver := &graph.Resolver{Storage: store, Bus: bus, Logger: logger}
	gql := NewGraphQLHandler(graph.NewExecutableSchema(graph.Config{Resolvers: resolver}), logger, HandlerOptions{
		Metrics: metrics,
	})
	return NewRouter(gql, registry, logger)
}

func newSeededStorage(t *testing.T) storage.Storage {
	t.Helper()
	store := storage.NewMemoryStorage(log.New(io.Discard))
	require.NoError(t, store.Seed(context.Background(), []models.Channel{models.NewChannel("general")}))
	return store
}

func postQuery(router http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, GraphQLPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Query(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	w := postQuery(router, `{"query":"{ channels { name } }"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"channels":[{"name":"general"}]}}`, w.Body.String())
}

func TestRouter_GetQuery(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	req := httptest.NewRequest(http.MethodGet, GraphQLPath+"?query=%7B%20channels%20%7B%20name%20%7D%20%7D", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"channels":[{"name":"general"}]}}`, w.Body.String())
}

func TestRouter_Gzip(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	query := `{"query":"{ __schema { types { name kind description fields { name description type { name kind } } } } }"}`
	w := postQuery(router, query, http.Header{"Accept-Encoding": []string{"gzip"}})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"name":"Channel"`)
}

func TestRouter_Preflight(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	req := httptest.NewRequest(http.MethodOptions, GraphQLPath, nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	// Браузеры передают имена заголовков в нижнем регистре
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))

	t.Run("Header not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, GraphQLPath, nil)
		req.Header.Set("Origin", "http://example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "x-custom")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRouter_Playground(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GraphQL Playground")
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, newSeededStorage(t))

	postQuery(router, `{"query":"{ channels { name } }"}`, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `graphql_operations_total{operation="query",outcome="ok"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_ResolverPanic(t *testing.T) {
	mockStorage := new(storage.MockStorage)
	mockStorage.On("GetAllChannels", mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(nil, nil)

	router := newTestRouter(t, mockStorage)
	w := postQuery(router, `{"query":"{ channels { name } }"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "internal system error")
	assert.Contains(t, w.Body.String(), `"data":null`)
}
