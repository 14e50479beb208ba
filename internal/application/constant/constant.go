package constant

// Ключи атрибутов для slog
const (
	Error     = "error"
	UserID    = "user_id"
	UserName  = "user_name"
	PeerID    = "peer_id"
	SessionID = "session_id"
	Role      = "role"
	Event     = "event"
	State     = "state"
	RoomID    = "room_id"
	CallType  = "call_type"
	Status    = "status"
	Duration  = "duration"
	Track     = "track"
	Stream    = "stream"
)
