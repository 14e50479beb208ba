package media

import (
	"log/slog"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/call"
)

// LogSink - sink без вывода: только пишет в лог, что было бы показано
type LogSink struct {
	name string
	log  *slog.Logger
}

func NewLogSink(name string, log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}

	return &LogSink{name: name, log: log.With(slog.String("sink", name))}
}

func (s *LogSink) Attach(stream call.Stream) error {
	kinds := make([]string, 0, len(stream.Tracks))
	for _, t := range stream.Tracks {
		kinds = append(kinds, t.Kind().String())
	}

	s.log.Info("stream attached", slog.String(constant.Stream, stream.ID), slog.Any("tracks", kinds))

	return nil
}

func (s *LogSink) Play() error {
	s.log.Debug("stream playing")
	return nil
}

func (s *LogSink) Clear() {
	s.log.Debug("stream cleared")
}
