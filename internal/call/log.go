package call

import (
	"context"
	"errors"

	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/signaling"
)

// LogSink - внешний журнал звонков
type LogSink interface {
	Record(ctx context.Context, log Log) error
}

type LogSinkFunc func(ctx context.Context, log Log) error

func (f LogSinkFunc) Record(ctx context.Context, log Log) error {
	return f(ctx, log)
}

// MultiLogSink пишет запись во все журналы, ошибки объединяются
type MultiLogSink []LogSink

func (m MultiLogSink) Record(ctx context.Context, log Log) error {
	var errs []error

	for _, sink := range m {
		if err := sink.Record(ctx, log); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// TransportLogSink отправляет call-ended-log серверу, адресат - собеседник
type TransportLogSink struct {
	transport signaling.Transport
}

func NewTransportLogSink(t signaling.Transport) *TransportLogSink {
	return &TransportLogSink{transport: t}
}

func (s *TransportLogSink) Record(ctx context.Context, log Log) error {
	return s.transport.Send(ctx, events.CallEndedLog, ToLogEvent(log), log.PeerID)
}

// ToLogEvent переводит запись в формат события call-ended-log
func ToLogEvent(log Log) events.CallEndedLogEvent {
	return events.CallEndedLogEvent{
		ReceiverID: log.ReceiverID,
		CallType:   string(log.CallType),
		Duration:   int(log.Duration.Seconds()),
		CallStatus: string(log.Status),
	}
}
