package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal metric.Int64Counter
	LoginAttemptsTotal    metric.Int64Counter
	LoginLockoutsTotal    metric.Int64Counter
	TokensIssuedTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the metric instruments once against the global
// MeterProvider and returns them. Callers receive the same instance.
func InitAppMetrics() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("gharnest")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Total number of login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.LoginLockoutsTotal, err = meter.Int64Counter(
			"login_lockouts_total",
			metric.WithDescription("Total number of accounts locked after repeated failures"),
			metric.WithUnit("{lockout}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_lockouts_total: %v", err)
		}

		m.TokensIssuedTotal, err = meter.Int64Counter(
			"tokens_issued_total",
			metric.WithDescription("Total number of JWT tokens issued"),
			metric.WithUnit("{token}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create tokens_issued_total: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}
