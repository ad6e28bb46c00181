package events

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stories-service/cache"
)

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func newTestCache(t *testing.T, keys ...string) *cache.Store {
	t.Helper()

	s, err := cache.New(cache.Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	for _, k := range keys {
		s.Put(k, cache.Entry{Status: 200, Payload: []byte(k)}, time.Hour)
	}
	return s
}

func TestBroadcastPublishesKeySet(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	bus := newBus(pub, "replica-a", slog.New(slog.DiscardHandler))

	var keys cache.KeySet
	keys.AddResource("/api/posts")
	keys.AddPrefix("/api/posts/popular")
	bus.Broadcast(keys)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, InvalidationSubject, pub.subjects[0])

	var msg InvalidationMessage
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, "replica-a", msg.Origin)
	assert.Equal(t, keys, msg.Keys)
}

func TestBroadcastSkipsEmptySetAndSwallowsErrors(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	bus := newBus(pub, "replica-a", slog.New(slog.DiscardHandler))

	bus.Broadcast(cache.KeySet{})
	assert.Empty(t, pub.payloads)

	bus.Broadcast(cache.KeySet{Exact: []string{"/api/posts"}})
	assert.Len(t, pub.payloads, 1)
}

func TestApplyPeerInvalidation(t *testing.T) {
	t.Parallel()

	store := newTestCache(t, "/api/posts", "/api/posts?page=2", "/api/posts/popular", "/api/posts/category/Tech")

	peer := newBus(&recordingPublisher{}, "replica-b", slog.New(slog.DiscardHandler))
	local := newBus(&recordingPublisher{}, "replica-a", slog.New(slog.DiscardHandler))

	var keys cache.KeySet
	keys.AddResource("/api/posts")
	data, err := json.Marshal(InvalidationMessage{Origin: peer.Instance(), Keys: keys})
	require.NoError(t, err)

	assert.Equal(t, 2, local.apply(data, store))
	assert.Equal(t, 2, store.Len())
}

func TestApplyIgnoresOwnAndMalformedMessages(t *testing.T) {
	t.Parallel()

	store := newTestCache(t, "/api/posts")
	bus := newBus(&recordingPublisher{}, "replica-a", slog.New(slog.DiscardHandler))

	data, err := json.Marshal(InvalidationMessage{Origin: "replica-a", Keys: cache.KeySet{Exact: []string{"/api/posts"}}})
	require.NoError(t, err)

	assert.Equal(t, 0, bus.apply(data, store))
	assert.Equal(t, 0, bus.apply([]byte("{not json"), store))
	assert.Equal(t, 1, store.Len())
}

func TestNewBusGeneratesInstanceID(t *testing.T) {
	t.Parallel()

	a := newBus(&recordingPublisher{}, "", slog.New(slog.DiscardHandler))
	b := newBus(&recordingPublisher{}, "", slog.New(slog.DiscardHandler))

	assert.NotEmpty(t, a.Instance())
	assert.NotEqual(t, a.Instance(), b.Instance())
}
