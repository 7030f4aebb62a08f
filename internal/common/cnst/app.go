package cnst

const (
	AppName = "oauthprobe"

	// CommandName is the name of the cobra root command
	CommandName = "oauthprobe"
)

// Language settings
const (
	XLang       = "X-Lang"
	LangEN      = "en"
	LangZH      = "zh"
	LangDefault = LangEN
)

// gin context keys
const (
	CtxKeyClaims  = "claims"
	CtxKeySession = "session"
	CtxKeyPending = "pending_request"
)

// RequestKeyParam is the form and query field carrying a pending request id
const RequestKeyParam = "req_id"
