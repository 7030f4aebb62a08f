package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	var v ValidationError
	assert.NoError(t, v.OrNil())

	v.Add("client_name", "ValidationLength", map[string]any{"Min": 10, "Max": 50})
	v.Add("redirect_uris", "ValidationMaxItems", nil)
	err := v.OrNil()
	assert.Error(t, err)
	assert.True(t, v.Has("client_name"))
	assert.False(t, v.Has("scope"))
	assert.Equal(t, "client_name", v.Fields[0].Field)
	assert.Equal(t, "redirect_uris", v.Fields[1].Field)
	assert.Equal(t, http.StatusBadRequest, v.StatusCode())
	assert.Contains(t, err.Error(), "client_name: ValidationLength; redirect_uris: ValidationMaxItems")

	var nilErr *ValidationError
	assert.NoError(t, nilErr.OrNil())
}

func TestCodedStatuses(t *testing.T) {
	cases := []struct {
		err    Coded
		status int
		msgID  string
	}{
		{&CorrelationError{ID: "x", Reason: CorrelationReasonNotFoundOrExpired}, http.StatusBadRequest, "ErrorStaleSubmission"},
		{&StateMismatchError{}, http.StatusBadRequest, "ErrorStateMismatch"},
		{&UpstreamError{Endpoint: EndpointToken, Status: 400}, http.StatusBadGateway, "ErrorUpstream"},
		{&ConflictError{Resource: "client", Key: "abc"}, http.StatusConflict, "ErrorConflict"},
		{&NotFoundError{Resource: "provider", Key: "p"}, http.StatusNotFound, "ErrorNotFound"},
		{&InvalidGrantError{Grant: "implicit"}, http.StatusBadRequest, "ErrorInvalidGrant"},
		{&UnsupportedGrantError{Grant: "implicit"}, http.StatusNotImplemented, "ErrorUnsupportedGrant"},
		{&AuthRequiredError{Reason: AuthReasonNoToken}, http.StatusUnauthorized, "ErrorAuthRequired_no_token"},
		{&MissingSelectionError{Resource: "client"}, http.StatusPreconditionFailed, "ErrorNoActiveSelection"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode(), tc.err.Error())
		assert.Equal(t, tc.msgID, tc.err.MessageID())
	}
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("exchange: %w", &UpstreamError{Endpoint: EndpointToken, Err: cause})

	var up *UpstreamError
	assert.True(t, errors.As(err, &up))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "token endpoint failed: connection refused", up.Error())

	denied := &UpstreamError{Endpoint: EndpointAuthorize, Code: "access_denied", Detail: "user said no"}
	assert.Equal(t, "authorize endpoint failed: access_denied: user said no", denied.Error())
	assert.Equal(t, "access_denied user said no", denied.TemplateData()["Detail"])

	withStatus := &UpstreamError{Endpoint: EndpointRegistration, Status: 400, Detail: "invalid_redirect_uri"}
	assert.Equal(t, "registration endpoint returned 400: invalid_redirect_uri", withStatus.Error())
}
