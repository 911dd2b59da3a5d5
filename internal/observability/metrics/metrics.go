package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "societyhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_society_registrations_total",
		Help: "Society registrations by result",
	}, []string{"result"})

	flatsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "societyhub_flats_generated_total",
		Help: "Flats inserted by grid generation at registration",
	})

	occupancyWrites = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "societyhub_occupancy_write_duration_seconds",
		Help:    "Duration of createFlat and upsertOccupancy transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	residentsProvisioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_residents_provisioned_total",
		Help: "Residents created with a bootstrap credential",
	}, []string{"role"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_logins_total",
		Help: "Login attempts by account type, credential state and result",
	}, []string{"account", "state", "result"})

	passwordChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_password_changes_total",
		Help: "Password change attempts by account type and result",
	}, []string{"account", "result"})

	flatCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_flat_cache_lookups_total",
		Help: "Flat listing cache lookups",
	}, []string{"result"})

	bootstrapResidents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "societyhub_bootstrap_residents",
		Help: "Residents that have not yet replaced their initial password",
	})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "societyhub_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveRegistration counts a registration outcome and the flats it created
func ObserveRegistration(result string, flats int) {
	registrations.WithLabelValues(result).Inc()
	if flats > 0 {
		flatsGenerated.Add(float64(flats))
	}
}

// ObserveOccupancyWrite records an occupancy transaction
func ObserveOccupancyWrite(operation, result string, duration time.Duration) {
	occupancyWrites.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObserveResidentProvisioned counts a new resident ("owner" or "resident")
func ObserveResidentProvisioned(role string) {
	residentsProvisioned.WithLabelValues(role).Inc()
}

// ObserveLogin counts a login attempt
func ObserveLogin(account, state, result string) {
	logins.WithLabelValues(account, state, result).Inc()
}

// ObservePasswordChange counts a password change attempt
func ObservePasswordChange(account, result string) {
	passwordChanges.WithLabelValues(account, result).Inc()
}

// ObserveFlatCache counts a cache "hit" or "miss"
func ObserveFlatCache(result string) {
	flatCacheLookups.WithLabelValues(result).Inc()
}

// SetBootstrapResidents sets the bootstrap-credential gauge
func SetBootstrapResidents(count int) {
	if count < 0 {
		count = 0
	}
	bootstrapResidents.Set(float64(count))
}

// ObserveRateLimited counts a throttled request
func ObserveRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

// Result maps an error to a low-cardinality label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
