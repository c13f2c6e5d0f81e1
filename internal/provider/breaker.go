package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/moviebot/internal/domain"
	"github.com/John-Robertt/moviebot/internal/logging"
	"github.com/John-Robertt/moviebot/internal/metrics"
)

// BreakerSettings 是熔断参数；零值字段使用默认值。
type BreakerSettings struct {
	// ConsecutiveFailures 连续失败多少次后打开熔断（默认 5）。
	ConsecutiveFailures uint32
	// OpenTimeout 打开后多久进入 half-open（默认 30s）。
	OpenTimeout time.Duration
}

// Breaker 用熔断器包装一个 Catalog：provider 持续不可用时快速失败，
// 避免每条指令都耗满 transport 的重试预算。
type Breaker struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

var _ Catalog = (*Breaker)(nil)

func NewBreaker(next Catalog, s BreakerSettings) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	name := next.Name() + "-api"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		// 调用方取消、结果缺字段都不是 provider 不可用的信号。
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			var me *MalformedRecordError
			return errors.As(err, &me)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker{next: next, cb: cb, name: name}
}

func (b *Breaker) Name() string { return b.next.Name() }

// State 返回当前熔断状态（测试与 /healthz 使用）。
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Popular(ctx context.Context, kind domain.MediaKind) ([]Record, error) {
	return castResult[[]Record](b.execute(func() (any, error) {
		return b.next.Popular(ctx, kind)
	}))
}

func (b *Breaker) Genres(ctx context.Context, kind domain.MediaKind) ([]domain.Genre, error) {
	return castResult[[]domain.Genre](b.execute(func() (any, error) {
		return b.next.Genres(ctx, kind)
	}))
}

func (b *Breaker) Discover(ctx context.Context, kind domain.MediaKind, genre domain.GenreID) ([]Record, error) {
	return castResult[[]Record](b.execute(func() (any, error) {
		return b.next.Discover(ctx, kind, genre)
	}))
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return res, err
}

func castResult[T any](res any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return typed, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
