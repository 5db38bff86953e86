package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/models"
	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/99designs/gqlgen/client"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	client *client.Client
	store  *storage.MemoryStorage
	bus    *pubsub.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := log.New(io.Discard)
	store := storage.NewMemoryStorage(logger)
	bus := pubsub.NewMemory(logger)
	t.Cleanup(func() { bus.Close() })

	general := models.NewChannel("general")
	general.Posts = append(general.Posts, models.NewPost("general", "hello world", fixedNow))
	cats := models.NewChannel("cats")
	cats.Posts = append(cats.Posts,
		models.NewPost("cats", "meow world", fixedNow),
		models.NewPost("cats", "hiss", fixedNow),
	)
	require.NoError(t, store.Seed(context.Background(), []models.Channel{general, cats}))

	resolver := &Resolver{
		Storage: store,
		Bus:     bus,
		Logger:  logger,
		Now:     func() time.Time { return fixedNow },
	}

	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver}))
	srv.AddTransport(transport.Websocket{
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	})
	srv.AddTransport(transport.POST{})
	srv.Use(extension.Introspection{})

	return &testServer{client: client.New(srv), store: store, bus: bus}
}

type postResp struct {
	Message string
	Date    string
}

type channelResp struct {
	Name  *string
	Posts []postResp
}

func TestQueryChannels_Seeded(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Channels []channelResp
	}
	ts.client.MustPost(`{ channels { name posts { message date } } }`, &resp)

	require.Len(t, resp.Channels, 2)
	assert.Equal(t, "general", *resp.Channels[0].Name)
	require.Len(t, resp.Channels[0].Posts, 1)
	assert.Equal(t, "hello world", resp.Channels[0].Posts[0].Message)
	assert.Equal(t, "3/5/2024", resp.Channels[0].Posts[0].Date)

	assert.Equal(t, "cats", *resp.Channels[1].Name)
	require.Len(t, resp.Channels[1].Posts, 2)
	assert.Equal(t, "meow world", resp.Channels[1].Posts[0].Message)
	assert.Equal(t, "hiss", resp.Channels[1].Posts[1].Message)
}

func TestQueryPosts(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Known channel", func(t *testing.T) {
		var resp struct {
			Posts []struct{ Message string }
		}
		ts.client.MustPost(`query($channel: String!) { posts(channel: $channel) { message } }`, &resp,
			client.Var("channel", "cats"))

		require.Len(t, resp.Posts, 2)
		assert.Equal(t, "meow world", resp.Posts[0].Message)
		assert.Equal(t, "hiss", resp.Posts[1].Message)
	})

	t.Run("Unknown channel", func(t *testing.T) {
		var resp struct {
			Posts []struct{ Message string }
		}
		ts.client.MustPost(`{ posts(channel: "nope") { message } }`, &resp)

		assert.NotNil(t, resp.Posts)
		assert.Empty(t, resp.Posts)
	})
}

func TestMutationAddPost(t *testing.T) {
	ts := newTestServer(t)

	var added struct {
		AddPost postResp
	}
	ts.client.MustPost(`mutation { addPost(channel: "general", message: "hi") { message date } }`, &added)
	assert.Equal(t, "hi", added.AddPost.Message)
	assert.Equal(t, "3/5/2024", added.AddPost.Date)

	var resp struct {
		Posts []struct{ Message string }
	}
	ts.client.MustPost(`{ posts(channel: "general") { message } }`, &resp)
	require.Len(t, resp.Posts, 2)
	assert.Equal(t, "hello world", resp.Posts[0].Message)
	assert.Equal(t, "hi", resp.Posts[1].Message)
}

func TestMutationAddPost_UnknownChannel(t *testing.T) {
	ts := newTestServer(t)
	before, err := ts.store.GetAllChannels(context.Background())
	require.NoError(t, err)

	var added struct {
		AddPost struct{ Message string }
	}
	ts.client.MustPost(`mutation { addPost(channel: "nope", message: "lost") { message } }`, &added)
	assert.Equal(t, "lost", added.AddPost.Message)

	after, err := ts.store.GetAllChannels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMutationAddChannel(t *testing.T) {
	ts := newTestServer(t)

	var added struct {
		AddChannel channelResp
	}
	ts.client.MustPost(`mutation { addChannel(name: "test") { name posts { message date } } }`, &added)
	require.NotNil(t, added.AddChannel.Name)
	assert.Equal(t, "test", *added.AddChannel.Name)
	assert.Empty(t, added.AddChannel.Posts)

	var resp struct {
		Channels []struct{ Name *string }
	}
	ts.client.MustPost(`{ channels { name } }`, &resp)
	require.Len(t, resp.Channels, 3)
	assert.Equal(t, "test", *resp.Channels[2].Name)

	t.Run("Duplicate name", func(t *testing.T) {
		var dup struct {
			AddChannel struct{ Name *string }
		}
		err := ts.client.Post(`mutation { addChannel(name: "test") { name } }`, &dup)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
		assert.Contains(t, err.Error(), "addChannel")
	})
}

func TestTypenameAndIntrospection(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Typename string `json:"__typename"`
		Schema   struct {
			QueryType        struct{ Name string }
			SubscriptionType struct{ Name string }
		} `json:"__schema"`
		Type struct {
			Kind   string
			Fields []struct {
				Name string
				Type struct {
					Kind   string
					OfType *struct{ Name *string }
				}
			}
		} `json:"__type"`
	}
	ts.client.MustPost(`{
		__typename
		__schema { queryType { name } subscriptionType { name } }
		__type(name: "Post") { kind fields { name type { kind ofType { name } } } }
	}`, &resp)

	assert.Equal(t, "Query", resp.Typename)
	assert.Equal(t, "Query", resp.Schema.QueryType.Name)
	assert.Equal(t, "Subscription", resp.Schema.SubscriptionType.Name)
	assert.Equal(t, "OBJECT", resp.Type.Kind)
	require.Len(t, resp.Type.Fields, 2)
	assert.Equal(t, "message", resp.Type.Fields[0].Name)
	assert.Equal(t, "NON_NULL", resp.Type.Fields[0].Type.Kind)
	require.NotNil(t, resp.Type.Fields[0].Type.OfType)
	assert.Equal(t, "String", *resp.Type.Fields[0].Type.OfType.Name)
}

func TestIntrospection_DeprecationAndOneOf(t *testing.T) {
	ts := newTestServer(t)

	var resp struct {
		Post struct {
			Name    string
			IsOneOf bool
		} `json:"post"`
		Query struct {
			Fields []struct {
				Name string
				Args []struct {
					Name              string
					IsDeprecated      bool
					DeprecationReason *string
				}
			}
		} `json:"query"`
	}
	ts.client.MustPost(`{
		post: __type(name: "Post") { name isOneOf }
		query: __type(name: "Query") { fields { name args(includeDeprecated: true) { name isDeprecated deprecationReason } } }
	}`, &resp)

	assert.Equal(t, "Post", resp.Post.Name)
	assert.False(t, resp.Post.IsOneOf)

	require.Len(t, resp.Query.Fields, 2)
	assert.Equal(t, "posts", resp.Query.Fields[0].Name)
	require.Len(t, resp.Query.Fields[0].Args, 1)
	assert.Equal(t, "channel", resp.Query.Fields[0].Args[0].Name)
	assert.False(t, resp.Query.Fields[0].Args[0].IsDeprecated)
	assert.Nil(t, resp.Query.Fields[0].Args[0].DeprecationReason)
}

// Запрос в том виде, в каком его отправляет GraphQL Playground при загрузке схемы
const playgroundIntrospection = `query IntrospectionQuery {
  __schema {
    description
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types { ...FullType }
    directives {
      name
      description
      isRepeatable
      locations
      args(includeDeprecated: true) { ...InputValue }
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  specifiedByURL
  isOneOf
  fields(includeDeprecated: true) {
    name
    description
    args(includeDeprecated: true) { ...InputValue }
    type { ...TypeRef }
    isDeprecated
    deprecationReason
  }
  inputFields(includeDeprecated: true) { ...InputValue }
  interfaces { ...TypeRef }
  enumValues(includeDeprecated: true) {
    name
    description
    isDeprecated
    deprecationReason
  }
  possibleTypes { ...TypeRef }
}

fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
  isDeprecated
  deprecationReason
}

fragment TypeRef on __Type {
  kind
  name
  ofType { kind name ofType { kind name ofType { kind name ofType { kind name } } } }
}`

func TestIntrospection_PlaygroundQuery(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.RawPost(playgroundIntrospection)
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	schema, ok := data["__schema"].(map[string]any)
	require.True(t, ok, "__schema must not be null")

	names := make(map[string]bool)
	for _, typ := range schema["types"].([]any) {
		names[typ.(map[string]any)["name"].(string)] = true
	}
	for _, name := range []string{"Query", "Mutation", "Subscription", "Post", "Channel", "__InputValue"} {
		assert.True(t, names[name], name)
	}
}

func TestComplexityLimit(t *testing.T) {
	resolver, _ := newTestResolver(storage.NewMemoryStorage(log.New(io.Discard)))

	var complexity ComplexityRoot
	complexity.Query.Posts = func(childComplexity int, channel string) int {
		if channel == "cats" {
			return 100
		}
		return 1 + childComplexity
	}

	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver, Complexity: complexity}))
	srv.AddTransport(transport.POST{})
	srv.Use(extension.FixedComplexityLimit(3))
	c := client.New(srv)

	t.Run("Within limit", func(t *testing.T) {
		var resp struct {
			Channels []struct{ Name *string }
		}
		require.NoError(t, c.Post(`{ channels { name } }`, &resp))
	})

	t.Run("Default field cost", func(t *testing.T) {
		var resp struct {
			Channels []struct {
				Name  *string
				Posts []postResp
			}
		}
		err := c.Post(`{ channels { name posts { message date } } }`, &resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "complexity")
	})

	t.Run("Custom cost uses arguments", func(t *testing.T) {
		var resp struct {
			Posts []struct{ Message string }
		}
		require.NoError(t, c.Post(`{ posts(channel: "general") { message } }`, &resp))

		err := c.Post(`{ posts(channel: "cats") { message } }`, &resp)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "complexity")
	})
}

func TestSubscriptionNewPost(t *testing.T) {
	ts := newTestServer(t)

	sub := ts.client.Websocket(`subscription { newPost(channel: "general") { message } }`)
	defer sub.Close()

	require.Eventually(t, func() bool {
		return ts.bus.Subscribers(pubsub.TopicNewPost) == 1
	}, time.Second, 10*time.Millisecond)

	var added struct {
		AddPost struct{ Message string }
	}
	ts.client.MustPost(`mutation { addPost(channel: "cats", message: "meow") { message } }`, &added)
	ts.client.MustPost(`mutation { addPost(channel: "general", message: "first") { message } }`, &added)
	ts.client.MustPost(`mutation { addPost(channel: "general", message: "second") { message } }`, &added)

	for _, want := range []string{"first", "second"} {
		var msg struct {
			NewPost struct{ Message string }
		}
		require.NoError(t, sub.Next(&msg))
		assert.Equal(t, want, msg.NewPost.Message)
	}

	t.Run("Late subscriber", func(t *testing.T) {
		late := ts.client.Websocket(`subscription { newPost(channel: "general") { message } }`)
		defer late.Close()

		require.Eventually(t, func() bool {
			return ts.bus.Subscribers(pubsub.TopicNewPost) == 2
		}, time.Second, 10*time.Millisecond)

		ts.client.MustPost(`mutation { addPost(channel: "general", message: "after") { message } }`, &added)

		// Первое событие позднего подписчика - пост, созданный после подписки
		var msg struct {
			NewPost struct{ Message string }
		}
		require.NoError(t, late.Next(&msg))
		assert.Equal(t, "after", msg.NewPost.Message)

		require.NoError(t, sub.Next(&msg))
		assert.Equal(t, "after", msg.NewPost.Message)
	})
}

func TestSubscriptionNewPost_Burst(t *testing.T) {
	ts := newTestServer(t)

	sub := ts.client.Websocket(`subscription { newPost(channel: "general") { message } }`)
	defer sub.Close()

	require.Eventually(t, func() bool {
		return ts.bus.Subscribers(pubsub.TopicNewPost) == 1
	}, time.Second, 10*time.Millisecond)

	const burst = 200

	var mutation strings.Builder
	mutation.WriteString("mutation {")
	for i := 0; i < burst; i++ {
		fmt.Fprintf(&mutation, ` p%d: addPost(channel: "general", message: "m%d") { message }`, i, i)
	}
	mutation.WriteString(" }")

	resp, err := ts.client.RawPost(mutation.String())
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	// Мутации выполняются последовательно, поэтому события приходят в порядке алиасов
	for i := 0; i < burst; i++ {
		var msg struct {
			NewPost struct{ Message string }
		}
		require.NoError(t, sub.Next(&msg))
		require.Equal(t, fmt.Sprintf("m%d", i), msg.NewPost.Message)
	}
}

func TestSubscriptionNewChannel(t *testing.T) {
	ts := newTestServer(t)

	sub := ts.client.Websocket(`subscription { newChannel { name } }`)
	defer sub.Close()

	require.Eventually(t, func() bool {
		return ts.bus.Subscribers(pubsub.TopicNewChannel) == 1
	}, time.Second, 10*time.Millisecond)

	var added struct {
		AddChannel struct{ Name *string }
	}
	ts.client.MustPost(`mutation { addChannel(name: "dogs") { name } }`, &added)

	var msg struct {
		NewChannel struct{ Name *string }
	}
	require.NoError(t, sub.Next(&msg))
	require.NotNil(t, msg.NewChannel.Name)
	assert.Equal(t, "dogs", *msg.NewChannel.Name)
}
