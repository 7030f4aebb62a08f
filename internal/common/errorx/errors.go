package errorx

import (
	"fmt"
	"net/http"
	"strings"
)

// Coded is implemented by every error in this package. The HTTP layer uses it
// to pick a status code and a translated message.
type Coded interface {
	error
	StatusCode() int
	MessageID() string
	TemplateData() map[string]any
}

// FieldError is a single failed rule on one input field
type FieldError struct {
	Field   string         `json:"field"`
	Message string         `json:"message"` // message id, translated at the edge
	Data    map[string]any `json:"-"`
}

// ValidationError collects field errors in the order the rules ran
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, msgID string, data map[string]any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msgID, Data: data})
}

// Has reports whether field already failed a rule
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e when it holds at least one field error, nil otherwise
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *ValidationError) MessageID() string { return "ErrorValidationFailed" }
func (e *ValidationError) TemplateData() map[string]any {
	return map[string]any{"Count": len(e.Fields)}
}

// CorrelationReasonNotFoundOrExpired is the only reason a pending request can fail
const CorrelationReasonNotFoundOrExpired = "not_found_or_expired"

// CorrelationError means a form submission referenced an unknown, expired or
// already consumed pending request.
type CorrelationError struct {
	ID     string
	Reason string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("pending request %q: %s", e.ID, e.Reason)
}
func (e *CorrelationError) StatusCode() int              { return http.StatusBadRequest }
func (e *CorrelationError) MessageID() string            { return "ErrorStaleSubmission" }
func (e *CorrelationError) TemplateData() map[string]any { return nil }

// StateMismatchError means a callback did not carry the nonce of the in-flight flow
type StateMismatchError struct {
	NoFlow bool
}

func (e *StateMismatchError) Error() string {
	if e.NoFlow {
		return "state mismatch: no authorization flow in progress"
	}
	return "state mismatch: callback state does not match the issued nonce"
}
func (e *StateMismatchError) StatusCode() int              { return http.StatusBadRequest }
func (e *StateMismatchError) MessageID() string            { return "ErrorStateMismatch" }
func (e *StateMismatchError) TemplateData() map[string]any { return nil }

// Upstream endpoint names
const (
	EndpointAuthorize    = "authorize"
	EndpointToken        = "token"
	EndpointRegistration = "registration"
	EndpointResource     = "resource"
)

// UpstreamError reports a failed call to an authorization server or resource.
// Status is zero for transport failures.
type UpstreamError struct {
	Endpoint string
	Status   int
	Code     string // OAuth error code when the server sent one
	Detail   string
	Err      error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s endpoint", e.Endpoint)
	if e.Status != 0 {
		fmt.Fprintf(&b, " returned %d", e.Status)
	} else {
		b.WriteString(" failed")
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}
func (e *UpstreamError) Unwrap() error     { return e.Err }
func (e *UpstreamError) StatusCode() int   { return http.StatusBadGateway }
func (e *UpstreamError) MessageID() string { return "ErrorUpstream" }
func (e *UpstreamError) TemplateData() map[string]any {
	detail := e.Detail
	if e.Code != "" {
		detail = strings.TrimSpace(e.Code + " " + e.Detail)
	}
	return map[string]any{"Endpoint": e.Endpoint, "Status": e.Status, "Detail": detail}
}

// ConflictError means a record with the same unique key already exists
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}
func (e *ConflictError) StatusCode() int   { return http.StatusConflict }
func (e *ConflictError) MessageID() string { return "ErrorConflict" }
func (e *ConflictError) TemplateData() map[string]any {
	return map[string]any{"Resource": e.Resource, "Key": e.Key}
}

// NotFoundError means a lookup key matched no record
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}
func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *NotFoundError) MessageID() string { return "ErrorNotFound" }
func (e *NotFoundError) TemplateData() map[string]any {
	return map[string]any{"Resource": e.Resource, "Key": e.Key}
}

// InvalidGrantError means the client did not declare the requested grant type
type InvalidGrantError struct {
	Grant    string
	ClientID string
}

func (e *InvalidGrantError) Error() string {
	return fmt.Sprintf("client %q does not declare grant type %q", e.ClientID, e.Grant)
}
func (e *InvalidGrantError) StatusCode() int   { return http.StatusBadRequest }
func (e *InvalidGrantError) MessageID() string { return "ErrorInvalidGrant" }
func (e *InvalidGrantError) TemplateData() map[string]any {
	return map[string]any{"Grant": e.Grant, "ClientID": e.ClientID}
}

// UnsupportedGrantError means the grant type is known but cannot be started here
type UnsupportedGrantError struct {
	Grant string
}

func (e *UnsupportedGrantError) Error() string {
	return fmt.Sprintf("grant type %q is not supported", e.Grant)
}
func (e *UnsupportedGrantError) StatusCode() int   { return http.StatusNotImplemented }
func (e *UnsupportedGrantError) MessageID() string { return "ErrorUnsupportedGrant" }
func (e *UnsupportedGrantError) TemplateData() map[string]any {
	return map[string]any{"Grant": e.Grant}
}

// Reasons carried by AuthRequiredError
const (
	AuthReasonNoToken            = "no_token"
	AuthReasonRejected           = "rejected"
	AuthReasonInvalidCredentials = "invalid_credentials"
	AuthReasonNoSession          = "no_session"
)

// AuthRequiredError means the caller must authenticate again: no usable token
// for the resource, bad login credentials, or a missing session.
type AuthRequiredError struct {
	Reason string
}

func (e *AuthRequiredError) Error() string     { return "authentication required: " + e.Reason }
func (e *AuthRequiredError) StatusCode() int   { return http.StatusUnauthorized }
func (e *AuthRequiredError) MessageID() string { return "ErrorAuthRequired_" + e.Reason }
func (e *AuthRequiredError) TemplateData() map[string]any {
	return nil
}

// MissingSelectionError means an operation needs an active client or provider
// that the session has not selected yet.
type MissingSelectionError struct {
	Resource string
}

func (e *MissingSelectionError) Error() string {
	return fmt.Sprintf("no active %s selected", e.Resource)
}
func (e *MissingSelectionError) StatusCode() int   { return http.StatusPreconditionFailed }
func (e *MissingSelectionError) MessageID() string { return "ErrorNoActiveSelection" }
func (e *MissingSelectionError) TemplateData() map[string]any {
	return map[string]any{"Resource": e.Resource}
}
