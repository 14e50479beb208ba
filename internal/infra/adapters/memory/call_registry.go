package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/PeerCall/internal/application/metric"
)

// CallRegistry - звонки в процессе на стороне сервера. Один пользователь - один звонок.
type CallRegistry interface {
	// Start регистрирует звонок в состоянии ringing, false если кто-то из пары занят
	Start(callerID, calleeID uuid.UUID) bool
	Accept(userID, peerID uuid.UUID) bool
	// End снимает звонок пользователя и возвращает собеседника
	End(userID uuid.UUID) (uuid.UUID, bool)
	Peer(userID uuid.UUID) (uuid.UUID, bool)
	Count() int
}

type activeCall struct {
	callerID  uuid.UUID
	calleeID  uuid.UUID
	active    bool
	startedAt time.Time
}

func (c *activeCall) peerOf(userID uuid.UUID) uuid.UUID {
	if c.callerID == userID {
		return c.calleeID
	}

	return c.callerID
}

type callRegistry struct {
	// calls хранит map[user_id]*activeCall, обе стороны указывают на одну запись
	calls map[uuid.UUID]*activeCall
	mu    sync.Mutex
}

func NewCallRegistry() CallRegistry {
	return &callRegistry{
		calls: make(map[uuid.UUID]*activeCall),
	}
}

func (r *callRegistry) Start(callerID, calleeID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID == calleeID {
		return false
	}

	for _, id := range []uuid.UUID{callerID, calleeID} {
		if c, ok := r.calls[id]; ok && !c.samePair(callerID, calleeID) {
			return false
		}
	}

	c := &activeCall{
		callerID:  callerID,
		calleeID:  calleeID,
		startedAt: time.Now(),
	}

	r.calls[callerID] = c
	r.calls[calleeID] = c

	metric.SetActiveCalls(len(r.calls) / 2)

	return true
}

func (r *callRegistry) Accept(userID, peerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[userID]
	if !ok || !c.samePair(userID, peerID) {
		return false
	}

	c.active = true

	return true
}

func (r *callRegistry) End(userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[userID]
	if !ok {
		return uuid.Nil, false
	}

	peerID := c.peerOf(userID)

	delete(r.calls, userID)
	delete(r.calls, peerID)

	metric.SetActiveCalls(len(r.calls) / 2)

	return peerID, true
}

func (r *callRegistry) Peer(userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[userID]
	if !ok {
		return uuid.Nil, false
	}

	return c.peerOf(userID), true
}

func (r *callRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls) / 2
}

func (c *activeCall) samePair(a, b uuid.UUID) bool {
	return (c.callerID == a && c.calleeID == b) || (c.callerID == b && c.calleeID == a)
}
