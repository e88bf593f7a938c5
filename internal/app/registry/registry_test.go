package registry

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

type mockHandle struct {
	mu       sync.Mutex
	received []string
	sendErr  error
}

func (m *mockHandle) Deliver(msg domain.OutboundText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, msg.Text)
	return nil
}

func (m *mockHandle) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.received...)
}

func newTestRegistry() *Registry {
	return New(slog.Default())
}

func join(t *testing.T, r *Registry, room domain.RoomID) (uuid.UUID, *mockHandle) {
	t.Helper()
	id := uuid.New()
	h := &mockHandle{}
	require.NoError(t, r.Join(domain.JoinRequest{ID: id, RoomID: room, Handle: h}))
	return id, h
}

func TestJoinNotifications(t *testing.T) {
	r := newTestRegistry()

	first, firstHandle := join(t, r, 1)
	assert.Equal(t, []string{domain.InfoNotice(first)}, firstHandle.texts())

	second, secondHandle := join(t, r, 1)

	// The existing member learns about the newcomer; by the time the
	// notice is observable the newcomer is already a member.
	assert.Contains(t, firstHandle.texts(), domain.ConnectedNotice(second))
	assert.Contains(t, r.Members(1), second)

	// The newcomer only gets its identity ack, never its own join notice.
	assert.Equal(t, []string{domain.InfoNotice(second)}, secondHandle.texts())
}

func TestJoinMembershipSticks(t *testing.T) {
	r := newTestRegistry()
	id, h := join(t, r, 7)

	for range 3 {
		r.Route(domain.InboundText{ID: id, RoomID: 7, Text: "ping me"})
	}
	assert.Contains(t, r.Members(7), id)
	assert.Equal(t, 4, len(h.texts())) // info + 3 broadcasts back to sender
}

func TestBroadcastIncludesSender(t *testing.T) {
	r := newTestRegistry()
	a, ha := join(t, r, 1)
	_, hb := join(t, r, 1)
	_, hc := join(t, r, 1)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "hello"})

	for _, h := range []*mockHandle{ha, hb, hc} {
		assert.Contains(t, h.texts(), "hello")
	}
}

func TestBroadcastStaysInRoom(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 1)
	_, other := join(t, r, 2)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "hello"})

	assert.NotContains(t, other.texts(), "hello")
}

func TestWhisperExclusivity(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 1)
	_, hb := join(t, r, 1)
	c, hc := join(t, r, 2)

	text := "/w " + c.String() + " hi"
	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: text})

	// Delivered verbatim to the target only, even across rooms.
	assert.Contains(t, hc.texts(), text)
	assert.NotContains(t, hb.texts(), text)
}

func TestWhisperUnknownTargetDropped(t *testing.T) {
	r := newTestRegistry()
	a, ha := join(t, r, 1)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "/w " + uuid.NewString() + " hi"})

	assert.Equal(t, []string{domain.InfoNotice(a)}, ha.texts())
}

func TestMalformedWhisperDropped(t *testing.T) {
	r := newTestRegistry()
	a, ha := join(t, r, 1)
	_, hb := join(t, r, 1)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "/w"})

	assert.NotContains(t, ha.texts(), "/w")
	assert.NotContains(t, hb.texts(), "/w")
}

func TestReservedCommandIsNoOp(t *testing.T) {
	r := newTestRegistry()
	a, ha := join(t, r, 1)
	b, hb := join(t, r, 1)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "/k " + b.String()})

	assert.NotContains(t, hb.texts(), "/k "+b.String())
	assert.NotContains(t, ha.texts(), "/k "+b.String())
	// Nobody was evicted either.
	assert.Len(t, r.Members(1), 2)
}

func TestLeaveNotifiesRemaining(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 1)
	_, hb := join(t, r, 1)

	r.Leave(domain.LeaveNotice{ID: a, RoomID: 1})

	assert.Contains(t, hb.texts(), domain.DisconnectedNotice(a))
	assert.NotContains(t, r.Members(1), a)
}

func TestLeaveIdempotent(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 1)
	_, hb := join(t, r, 1)

	r.Leave(domain.LeaveNotice{ID: a, RoomID: 1})
	r.Leave(domain.LeaveNotice{ID: a, RoomID: 1})

	count := 0
	for _, text := range hb.texts() {
		if text == domain.DisconnectedNotice(a) {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, r.Members(1), 1)
}

func TestRoomRemovedWithLastMember(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 9)

	rooms, members := r.Stats()
	require.Equal(t, 1, rooms)
	require.Equal(t, 1, members)

	r.Leave(domain.LeaveNotice{ID: a, RoomID: 9})

	rooms, members = r.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, members)
	assert.Nil(t, r.Members(9))
}

func TestFailedDeliveryDoesNotAbortFanout(t *testing.T) {
	r := newTestRegistry()
	a, _ := join(t, r, 1)

	broken := uuid.New()
	require.NoError(t, r.Join(domain.JoinRequest{
		ID: broken, RoomID: 1, Handle: &mockHandle{sendErr: domain.ErrSessionBufferFull},
	}))
	_, hc := join(t, r, 1)

	r.Route(domain.InboundText{ID: a, RoomID: 1, Text: "still delivered"})

	assert.Contains(t, hc.texts(), "still delivered")
	assert.Len(t, r.Members(1), 3)
}

func TestRouteUnknownRoom(t *testing.T) {
	r := newTestRegistry()

	// Must not panic or mutate anything.
	r.Route(domain.InboundText{ID: uuid.New(), RoomID: 404, Text: "anyone there"})

	rooms, _ := r.Stats()
	assert.Equal(t, 0, rooms)
}

func TestJoinAfterClose(t *testing.T) {
	r := newTestRegistry()
	r.Close()

	err := r.Join(domain.JoinRequest{ID: uuid.New(), RoomID: 1, Handle: &mockHandle{}})
	assert.ErrorIs(t, err, domain.ErrRegistryClosed)

	_, members := r.Stats()
	assert.Equal(t, 0, members)
}

func TestOccupancy(t *testing.T) {
	r := newTestRegistry()
	join(t, r, 1)
	join(t, r, 1)
	join(t, r, 2)

	occ := r.Occupancy()
	assert.Equal(t, map[domain.RoomID]int{1: 2, 2: 1}, occ)
}
