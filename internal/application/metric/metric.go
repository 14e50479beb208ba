package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - количество ошибок
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	// Сигналинг - пересланные события по типу
	signalingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_events_total",
			Help: "Количество пересланных событий сигналинга",
		},
		[]string{"event"},
	)

	// Звонки в процессе (ringing + active)
	activeCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calls_active",
			Help: "Количество звонков в процессе",
		},
	)

	// Итоги звонков из call-ended-log
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_total",
			Help: "Завершенные звонки по типу и статусу",
		},
		[]string{"type", "status"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "call_duration_seconds",
			Help:    "Длительность состоявшихся звонков",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	// Игры
	gameRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_rooms_active",
			Help: "Количество открытых игровых комнат",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	// Записываем ошибки (статус >= 400)
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func RecordSignalingEvent(event string) {
	signalingEventsTotal.WithLabelValues(event).Inc()
}

func SetActiveCalls(count int) {
	activeCalls.Set(float64(count))
}

// RecordCall учитывает итог звонка, длительность пишется только для completed
func RecordCall(callType, status string, duration time.Duration) {
	callsTotal.WithLabelValues(callType, status).Inc()

	if status == "completed" {
		callDuration.WithLabelValues(callType).Observe(duration.Seconds())
	}
}

func SetGameRooms(count int) {
	gameRooms.Set(float64(count))
}
