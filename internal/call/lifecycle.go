package call

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Lifecycle - ringing -> connecting -> connected -> ended, без переходов назад.
// Не потокобезопасен, вызывается только из цикла сессии.
type Lifecycle struct {
	role  Role
	clock clock.Clock

	state       State
	startedAt   time.Time
	connectedAt time.Time
	endedAt     time.Time

	timerStarted bool
}

func NewLifecycle(role Role, clk clock.Clock) *Lifecycle {
	return &Lifecycle{
		role:      role,
		clock:     clk,
		state:     StateRinging,
		startedAt: clk.Now(),
	}
}

func (l *Lifecycle) State() State           { return l.state }
func (l *Lifecycle) StartedAt() time.Time   { return l.startedAt }
func (l *Lifecycle) ConnectedAt() time.Time { return l.connectedAt }
func (l *Lifecycle) TimerStarted() bool     { return l.timerStarted }
func (l *Lifecycle) Ended() bool            { return l.state == StateEnded }

// MarkConnecting - сигналинг пошел, медиа еще нет
func (l *Lifecycle) MarkConnecting() bool {
	if l.state != StateRinging {
		return false
	}

	l.state = StateConnecting

	return true
}

// MarkConnected срабатывает ровно один раз: по первому удаленному треку или по connected у соединения.
// true означает, что нужно запустить таймер длительности.
func (l *Lifecycle) MarkConnected() bool {
	if l.timerStarted || l.state == StateEnded {
		return false
	}

	l.state = StateConnected
	l.connectedAt = l.clock.Now()
	l.timerStarted = true

	return true
}

// Elapsed - время с момента соединения, с точностью до секунды
func (l *Lifecycle) Elapsed() time.Duration {
	if l.connectedAt.IsZero() {
		return 0
	}

	end := l.endedAt
	if end.IsZero() {
		end = l.clock.Now()
	}

	return end.Sub(l.connectedAt).Truncate(time.Second)
}

// End переводит в ended и возвращает состояние до завершения. Повторный вызов возвращает false.
func (l *Lifecycle) End(reason EndReason) (prev State, status Status, ok bool) {
	if l.state == StateEnded {
		return StateEnded, "", false
	}

	prev = l.state
	l.state = StateEnded
	l.endedAt = l.clock.Now()

	return prev, Classify(prev, l.role, reason), true
}
