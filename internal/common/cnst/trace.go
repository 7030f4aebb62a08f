package cnst

// Tracer names used across the services
const (
	TraceOAuth    = "oauthprobe/oauth"
	TraceResource = "oauthprobe/resource"
)

// Span names
const (
	SpanFlowStart     = "oauth.flow.start"
	SpanFlowCallback  = "oauth.flow.callback"
	SpanRegister      = "oauth.dcr.register"
	SpanRefresh       = "oauth.token.refresh"
	SpanResourceFetch = "resource.fetch"
)

// Attribute keys
const (
	AttrGrantType      = "oauth.grant_type"
	AttrClientID       = "oauth.client_id"
	AttrProvider       = "oauth.provider"
	AttrFlowID         = "oauth.flow_id"
	AttrFlowStatus     = "oauth.flow_status"
	AttrHTTPStatusCode = "http.status_code"
	AttrErrorReason    = "error.reason"
)
