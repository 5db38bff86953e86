package server

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/observability"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

var errInternal = errors.New("internal system error")

type HandlerOptions struct {
	// KeepAlive - период ping для websocket-подписок, 0 отключает ping
	KeepAlive      time.Duration
	Metrics        *observability.Metrics
	TracerProvider trace.TracerProvider
}

// NewGraphQLHandler собирает gqlgen-сервер: websocket, GET, POST, OPTIONS и интроспекция
func NewGraphQLHandler(es graphql.ExecutableSchema, logger *log.Logger, opts HandlerOptions) *handler.Server {
	srv := handler.New(es)

	// Поддержка WebSockets (graphql-ws и graphql-transport-ws)
	srv.AddTransport(transport.Websocket{
		KeepAlivePingInterval: opts.KeepAlive,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		InitFunc: func(ctx context.Context, _ transport.InitPayload) (context.Context, *transport.InitPayload, error) {
			logger.Debug("websocket connection initialised")
			return ctx, nil, nil
		},
	})
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})

	srv.Use(extension.Introspection{})
	srv.Use(observability.NewExtension(opts.Metrics, opts.TracerProvider))

	srv.SetRecoverFunc(func(ctx context.Context, err any) error {
		logger.Error("resolver panic", "err", err, "stack", string(debug.Stack()))
		return errInternal
	})

	return srv
}
