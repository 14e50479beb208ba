package signaling

import "sync"

// Registry - потокобезопасный реестр обработчиков по типу события.
// Используется реализациями Transport.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[uint64]Handler)}
}

func (r *Registry) On(event string, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	if r.handlers[event] == nil {
		r.handlers[event] = make(map[uint64]Handler)
	}
	r.handlers[event][id] = h

	var once sync.Once

	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			delete(r.handlers[event], id)
			if len(r.handlers[event]) == 0 {
				delete(r.handlers, event)
			}
		})
	}
}

// Dispatch вызывает обработчики вне блокировки, чтобы они могли отписываться
func (r *Registry) Dispatch(event string, in Inbound) int {
	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[event]))
	for _, h := range r.handlers[event] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()

	for _, h := range hs {
		h(in)
	}

	return len(hs)
}
