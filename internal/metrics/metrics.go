package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 指令处理
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_commands_total",
			Help: "Total number of chat commands handled",
		},
		[]string{"command", "outcome"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebot_command_duration_seconds",
			Help:    "Time spent handling a chat command, including provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"command"},
	)

	// provider 调用
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_provider_requests_total",
			Help: "Total number of provider API calls by endpoint and result",
		},
		[]string{"provider", "endpoint", "result"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebot_provider_request_duration_seconds",
			Help:    "Duration of provider API calls including transport retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	HTTPRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_http_retries_total",
			Help: "Total number of HTTP retry attempts by host",
		},
		[]string{"host"},
	)

	// genre 目录缓存
	GenreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_genre_lookups_total",
			Help: "Genre directory lookups by media kind and cache result",
		},
		[]string{"kind", "cache"},
	)

	// 熔断器
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviebot_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_circuit_breaker_requests_total",
			Help: "Requests passing through the circuit breaker by result",
		},
		[]string{"name", "result"},
	)
)
