// Package signaling описывает контракт транспорта сигналинга между двумя пирами.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
)

// Inbound - входящее событие от пира (From проставлен сервером)
type Inbound struct {
	From string
	Data json.RawMessage
}

// Decode разбирает payload события
func (in Inbound) Decode(v any) error {
	if len(in.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}

type Handler func(Inbound)

// Transport - двунаправленный канал до сервера-ретранслятора.
// Send не ждет доставки, On возвращает функцию отписки.
type Transport interface {
	Send(ctx context.Context, event string, payload any, to string) error
	On(event string, h Handler) (cancel func())
}

// Subscriptions собирает функции отписки и вызывает их разом
type Subscriptions struct {
	cancels []func()
}

func (s *Subscriptions) Add(cancel func()) {
	s.cancels = append(s.cancels, cancel)
}

func (s *Subscriptions) On(t Transport, event string, h Handler) {
	s.Add(t.On(event, h))
}

// Cancel отписывает все обработчики, повторный вызов ничего не делает
func (s *Subscriptions) Cancel() {
	for _, cancel := range s.cancels {
		cancel()
	}

	s.cancels = nil
}
