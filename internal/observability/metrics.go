package observability

const (
	MSyncRequests          MetricKey = "cart_sync_requests_total"
	MSyncDuration          MetricKey = "cart_sync_duration_seconds"
	MHTTPRequests          MetricKey = "http_requests_total"
	MHTTPRequestDuration   MetricKey = "http_request_duration_seconds"
	MRemoteRequests        MetricKey = "remote_requests_total"
	MRemoteRequestDuration MetricKey = "remote_request_duration_seconds"
	MCatalogLookups        MetricKey = "catalog_lookups_total"
)
