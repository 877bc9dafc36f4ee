package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct{}

func (fakeChat) AppendMessage(context.Context, uint64, uint64, string, string) (*db.Message, error) {
	return &db.Message{}, nil
}
func (fakeChat) MarkRead(context.Context, uint64, uint64) error { return nil }

type fakeDirectory struct {
	viewErr error
}

func (fakeDirectory) SetPresence(context.Context, uint64, bool) error { return nil }
func (f fakeDirectory) RecordProfileView(context.Context, uint64, uint64) error {
	return f.viewErr
}

func newTestGateway(users Directory) (*Gateway, *Hub) {
	hub := newTestHub()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(hub, nil, fakeChat{}, users, log), hub
}

func payloadOf(t *testing.T, env envelope) map[string]interface{} {
	t.Helper()
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "event payload should be an object")
	return data
}

func TestTypingEventCarriesFullSet(t *testing.T) {
	gateway, hub := newTestGateway(fakeDirectory{})
	alice := testClient(1)
	bob := testClient(2)
	hub.add(alice)
	hub.add(bob)
	hub.JoinRoom(alice, 7)
	hub.JoinRoom(bob, 7)

	gateway.dispatch(alice, []byte(`{"event":"chat:typing","data":{"conversationId":7,"isTyping":true}}`))

	env := receive(t, bob)
	assert.Equal(t, "chat:typing", env.Event)
	data := payloadOf(t, env)
	assert.Equal(t, true, data["isTyping"])
	assert.Equal(t, []interface{}{float64(1)}, data["typingUsers"])
	assert.Empty(t, alice.send)

	// repeating the same state emits nothing
	gateway.dispatch(alice, []byte(`{"event":"chat:typing","data":{"conversationId":7,"isTyping":true}}`))
	assert.Empty(t, bob.send)

	gateway.dispatch(alice, []byte(`{"event":"chat:typing","data":{"conversationId":7,"isTyping":false}}`))
	data = payloadOf(t, receive(t, bob))
	assert.Equal(t, false, data["isTyping"])
	assert.Equal(t, []interface{}{}, data["typingUsers"])
}

func TestDisconnectBroadcastsTypingStopWithRemainingSet(t *testing.T) {
	gateway, hub := newTestGateway(fakeDirectory{})
	alice := testClient(1)
	bob := testClient(2)
	carol := testClient(3)
	hub.add(alice)
	hub.add(bob)
	hub.add(carol)
	hub.JoinRoom(alice, 7)
	hub.JoinRoom(bob, 7)
	hub.JoinRoom(carol, 7)

	gateway.dispatch(alice, []byte(`{"event":"chat:typing","data":{"conversationId":7,"isTyping":true}}`))
	gateway.dispatch(carol, []byte(`{"event":"chat:typing","data":{"conversationId":7,"isTyping":true}}`))
	for len(bob.send) > 0 {
		<-bob.send
	}

	gateway.disconnect(alice)

	env := receive(t, bob)
	assert.Equal(t, "chat:typing", env.Event)
	data := payloadOf(t, env)
	assert.Equal(t, float64(1), data["userId"])
	assert.Equal(t, false, data["isTyping"])
	assert.Equal(t, []interface{}{float64(3)}, data["typingUsers"])
}

func TestProfileViewFailureNotifiesSender(t *testing.T) {
	gateway, hub := newTestGateway(fakeDirectory{viewErr: apperrors.NotFound("user not found")})
	alice := testClient(1)
	hub.add(alice)

	gateway.dispatch(alice, []byte(`{"event":"profile:view","data":{"targetUserId":9}}`))

	env := receive(t, alice)
	assert.Equal(t, "chat:error", env.Event)
	assert.Equal(t, "user not found", payloadOf(t, env)["message"])
}
