package server

import (
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const GraphQLPath = "/graphql"

type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func SetupRouter(routes []Route, middlewares ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()

	for _, middleware := range middlewares {
		router.Use(middleware)
	}

	for _, route := range routes {
		router.Handle(route.Method, route.Path, route.Handler)
	}

	return router
}

// NewRouter - маршруты сервера: /graphql, playground и /metrics
func NewRouter(gql http.Handler, gatherer prometheus.Gatherer, logger *log.Logger) *gin.Engine {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	routes := []Route{
		// Сжатие только для POST: websocket-апгрейд идет через GET
		{Method: http.MethodPost, Path: GraphQLPath, Handler: gin.WrapH(c.Handler(gzhttp.GzipHandler(gql)))},
		{Method: http.MethodGet, Path: GraphQLPath, Handler: gin.WrapH(c.Handler(gql))},
		{Method: http.MethodOptions, Path: GraphQLPath, Handler: gin.WrapH(c.Handler(gql))},
		{Method: http.MethodGet, Path: "/", Handler: gin.WrapH(playground.Handler("GraphQL Playground", GraphQLPath))},
		{Method: http.MethodGet, Path: "/metrics", Handler: gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))},
	}

	return SetupRouter(routes, gin.Recovery(), RequestLogger(logger))
}

// RequestLogger пишет одну строку лога на каждый HTTP-запрос
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
