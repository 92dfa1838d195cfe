package observability

// Metric keys and the label sets prometrics.Standard registers them with.
const (
	// use_case, outcome
	MUsecaseRequests MetricKey = "usecase_requests_total"

	// use_case
	MUsecaseDuration MetricKey = "usecase_duration_seconds"

	// method, route, status
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"

	// peer, endpoint, outcome; peers are store, payment-gateway, outbox, notifier
	MExternalRequests MetricKey = "external_requests_total"

	// peer, endpoint
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"

	// op is reserve, release or rollback; outcome is success, rejected, missing or error
	MInventoryAdjustments MetricKey = "inventory_adjustments_total"
)
