package memory

import (
	"sync"

	"github.com/qrave1/PeerCall/internal/application/metric"
	"github.com/qrave1/PeerCall/internal/domain/backgammon"
)

// GameRoom - партия с собственным мьютексом, backgammon.Game не потокобезопасен
type GameRoom struct {
	ID string

	mu   sync.Mutex
	game *backgammon.Game
}

// Do выполняет fn под блокировкой комнаты
func (r *GameRoom) Do(fn func(g *backgammon.Game)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(r.game)
}

type GameRoomRepository interface {
	GetOrCreate(roomID string) *GameRoom
	Get(roomID string) (*GameRoom, bool)
	Delete(roomID string)
	List() []*GameRoom
}

type gameRoomRepository struct {
	rooms map[string]*GameRoom
	roll  backgammon.Roller
	mu    sync.RWMutex
}

// NewGameRoomRepository - roll nil означает честные кубики
func NewGameRoomRepository(roll backgammon.Roller) GameRoomRepository {
	return &gameRoomRepository{
		rooms: make(map[string]*GameRoom),
		roll:  roll,
	}
}

func (r *gameRoomRepository) GetOrCreate(roomID string) *GameRoom {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = &GameRoom{ID: roomID, game: backgammon.NewGame(r.roll)}
		r.rooms[roomID] = room

		metric.SetGameRooms(len(r.rooms))
	}

	return room
}

func (r *gameRoomRepository) Get(roomID string) (*GameRoom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *gameRoomRepository) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)

	metric.SetGameRooms(len(r.rooms))
}

func (r *gameRoomRepository) List() []*GameRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*GameRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}
