package graph

import (
	"time"

	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/charmbracelet/log"
)

//go:generate go tool gqlgen generate

const DefaultDateLayout = "1/2/2006"

// Resolver - корневая структура резолверов, здесь внедряются зависимости
type Resolver struct {
	Storage    storage.Storage
	Bus        pubsub.Bus
	Logger     *log.Logger
	DateLayout string
	Now        func() time.Time
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) dateLayout() string {
	if r.DateLayout == "" {
		return DefaultDateLayout
	}
	return r.DateLayout
}
