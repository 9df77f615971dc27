package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AuthRequestsTotal       metric.Int64Counter
	AuthDurationSeconds     metric.Float64Histogram
	QuizzesCreatedTotal     metric.Int64Counter
	AttemptsStartedTotal    metric.Int64Counter
	AttemptsSubmittedTotal  metric.Int64Counter
	GuardRedirectsTotal     metric.Int64Counter
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("QuizDeck")
		var err error
		m := &AppMetrics{}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of auth requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.AuthDurationSeconds, err = meter.Float64Histogram(
			"auth_duration_seconds",
			metric.WithDescription("Duration of auth requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_duration_seconds: %v", err)
		}

		m.QuizzesCreatedTotal, err = meter.Int64Counter(
			"quizzes_created_total",
			metric.WithDescription("Total number of quizzes created"),
			metric.WithUnit("{quiz}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create quizzes_created_total: %v", err)
		}

		m.AttemptsStartedTotal, err = meter.Int64Counter(
			"attempts_started_total",
			metric.WithDescription("Total number of quiz attempts started"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create attempts_started_total: %v", err)
		}

		m.AttemptsSubmittedTotal, err = meter.Int64Counter(
			"attempts_submitted_total",
			metric.WithDescription("Total number of quiz attempts submitted"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create attempts_submitted_total: %v", err)
		}

		m.GuardRedirectsTotal, err = meter.Int64Counter(
			"guard_redirects_total",
			metric.WithDescription("Total number of page requests redirected by the access guard"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create guard_redirects_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics instance, initializing it on first use.
// Before a real MeterProvider is installed the instruments are no-ops.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
