package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/domain/models"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres/repository"
)

type written struct {
	to  uuid.UUID
	msg events.Message
}

// fakeWS - реестр соединений без сокетов, запоминает отправленное
type fakeWS struct {
	mu        sync.Mutex
	connected map[uuid.UUID]bool
	writes    []written
}

func newFakeWS(online ...uuid.UUID) *fakeWS {
	f := &fakeWS{connected: make(map[uuid.UUID]bool)}
	for _, id := range online {
		f.connected[id] = true
	}

	return f
}

func (f *fakeWS) Add(userID uuid.UUID, _ *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected[userID] = true
}

func (f *fakeWS) Remove(userID uuid.UUID, _ *websocket.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	ok := f.connected[userID]
	delete(f.connected, userID)

	return ok
}

func (f *fakeWS) Write(userID uuid.UUID, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected[userID] {
		return memory.ErrNotConnected
	}

	f.writes = append(f.writes, written{to: userID, msg: payload.(events.Message)})

	return nil
}

func (f *fakeWS) Broadcast(payload any, except uuid.UUID) {
	for _, id := range f.GetAllConnected() {
		if id != except {
			_ = f.Write(id, payload)
		}
	}
}

func (f *fakeWS) IsConnected(userID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected[userID]
}

func (f *fakeWS) GetAllConnected() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(f.connected))
	for id := range f.connected {
		ids = append(ids, id)
	}

	return ids
}

// to - сообщения адресату, опционально только заданного типа
func (f *fakeWS) to(userID uuid.UUID, eventType string) []events.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []events.Message
	for _, w := range f.writes {
		if w.to == userID && (eventType == "" || w.msg.Type == eventType) {
			out = append(out, w.msg)
		}
	}

	return out
}

func (f *fakeWS) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes = nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrAlreadyExists
		}
	}

	cp := *user
	r.users[user.ID] = &cp

	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })

	return out, nil
}

type fakeCallLogRepo struct {
	mu        sync.Mutex
	logs      []*models.CallLog
	lastLimit int
}

func (r *fakeCallLogRepo) Create(_ context.Context, log *models.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, log)

	return nil
}

func (r *fakeCallLogRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastLimit = limit

	var out []*models.CallLog
	for _, l := range r.logs {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}

	return out, nil
}

func mustMessage(eventType string, payload any) *events.Message {
	msg, err := events.NewMessage(eventType, payload)
	if err != nil {
		panic(err)
	}

	return &msg
}
