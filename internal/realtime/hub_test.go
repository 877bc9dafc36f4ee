package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testClient(userID uint64) *Client {
	return &Client{send: make(chan []byte, 8), userID: userID}
}

func receive(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a delivered event")
		return envelope{}
	}
}

func TestEmitToUserReachesAllConnections(t *testing.T) {
	hub := newTestHub()
	phone := testClient(1)
	laptop := testClient(1)
	other := testClient(2)
	hub.add(phone)
	hub.add(laptop)
	hub.add(other)

	hub.EmitToUser(1, "match:created", map[string]interface{}{"matchId": "1-2"})

	assert.Equal(t, "match:created", receive(t, phone).Event)
	assert.Equal(t, "match:created", receive(t, laptop).Event)
	assert.Empty(t, other.send)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := newTestHub()
	a := testClient(1)
	b := testClient(2)
	hub.add(a)
	hub.add(b)

	hub.Broadcast("user:online", map[string]interface{}{"userId": uint64(3)})

	assert.Equal(t, "user:online", receive(t, a).Event)
	assert.Equal(t, "user:online", receive(t, b).Event)
}

func TestRemoveReportsLastConnection(t *testing.T) {
	hub := newTestHub()
	phone := testClient(1)
	laptop := testClient(1)
	hub.add(phone)
	hub.add(laptop)

	assert.False(t, hub.remove(phone))
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.remove(laptop))
	assert.False(t, hub.IsOnline(1))

	// removed clients no longer receive
	hub.EmitToUser(1, "match:created", nil)
	_, open := <-phone.send
	assert.False(t, open)
}

func TestRoomEmitSkipsSender(t *testing.T) {
	hub := newTestHub()
	alice := testClient(1)
	bob := testClient(2)
	eve := testClient(3)
	hub.add(alice)
	hub.add(bob)
	hub.add(eve)
	hub.JoinRoom(alice, 7)
	hub.JoinRoom(bob, 7)

	hub.emitToRoom(7, "chat:typing", map[string]interface{}{"isTyping": true}, alice)

	assert.Equal(t, "chat:typing", receive(t, bob).Event)
	assert.Empty(t, alice.send)
	assert.Empty(t, eve.send)
}

func TestSetTypingReturnsSnapshotAndTransitions(t *testing.T) {
	hub := newTestHub()

	snap, changed := hub.setTyping(7, 1, true)
	assert.True(t, changed)
	assert.ElementsMatch(t, []uint64{1}, snap)

	_, changed = hub.setTyping(7, 1, true)
	assert.False(t, changed)

	snap, changed = hub.setTyping(7, 2, true)
	assert.True(t, changed)
	assert.ElementsMatch(t, []uint64{1, 2}, snap)

	snap, changed = hub.setTyping(7, 1, false)
	assert.True(t, changed)
	assert.ElementsMatch(t, []uint64{2}, snap)

	_, changed = hub.setTyping(7, 1, false)
	assert.False(t, changed)
}

func TestSetTypingSnapshotIsNeverNil(t *testing.T) {
	hub := newTestHub()
	hub.setTyping(7, 1, true)

	snap, changed := hub.setTyping(7, 1, false)
	assert.True(t, changed)
	require.NotNil(t, snap)
	assert.Empty(t, snap)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestPurgeTypingReturnsRemainingSets(t *testing.T) {
	hub := newTestHub()
	hub.setTyping(7, 1, true)
	hub.setTyping(7, 2, true)
	hub.setTyping(8, 1, true)
	hub.setTyping(9, 2, true)

	affected := hub.purgeTyping(1)
	require.Len(t, affected, 2)
	assert.ElementsMatch(t, []uint64{2}, affected[7])
	assert.Empty(t, affected[8])

	// user 2 is untouched, user 1 left nothing behind
	_, changed := hub.setTyping(9, 2, true)
	assert.False(t, changed)
	assert.Empty(t, hub.purgeTyping(1))
}
