package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/config"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Addr:            "127.0.0.1:0",
		StorageType:     config.StorageMemory,
		BusType:         config.BusMemory,
		DateLayout:      "2006-01-02",
		ShutdownTimeout: time.Second,
	}
}

func query(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestApp_DefaultSeed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	a, err := New(context.Background(), testConfig(), log.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	body := query(t, a.Handler(), `{"query":"{ channels { name posts { message } } }"}`)
	assert.JSONEq(t, `{"data":{"channels":[
		{"name":"general","posts":[{"message":"hello world"}]},
		{"name":"cats","posts":[{"message":"meow world"},{"message":"hiss"}]}
	]}}`, body)
}

func TestApp_SeedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: dogs\n    posts: [woof]\n"), 0o600))

	cfg := testConfig()
	cfg.SeedFile = path

	a, err := New(context.Background(), cfg, log.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	body := query(t, a.Handler(), `{"query":"{ posts(channel: \"dogs\") { message date } }"}`)
	today := time.Now().Local().Format("2006-01-02")
	assert.JSONEq(t, `{"data":{"posts":[{"message":"woof","date":"`+today+`"}]}}`, body)
}

func TestApp_InvalidSeedFile(t *testing.T) {
	cfg := testConfig()
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, log.New(io.Discard))
	assert.ErrorContains(t, err, "seed")
}

func TestApp_UnknownBus(t *testing.T) {
	cfg := testConfig()
	cfg.BusType = "kafka"

	_, err := New(context.Background(), cfg, log.New(io.Discard))
	assert.ErrorContains(t, err, "kafka")
}

func TestApp_Run(t *testing.T) {
	gin.SetMode(gin.TestMode)

	a, err := New(context.Background(), testConfig(), log.New(io.Discard))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}
