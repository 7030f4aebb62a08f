package errorx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUpstreamBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   string
		detail string
	}{
		{"oauth error", `{"error":"invalid_client","error_description":"nope"}`, "invalid_client", "nope"},
		{"message only", `{"message":"bad client"}`, "", "bad client"},
		{"error only", `{"error":"invalid_grant"}`, "invalid_grant", ""},
		{"json without error members", `{"trace":"/srv/app/db.go:42"}`, "", DetailUnparsedBody},
		{"html", `<html>panic: runtime error password=hunter2</html>`, "", DetailUnparsedBody},
		{"empty", ``, "", DetailUnparsedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, detail := ParseUpstreamBody([]byte(tt.body))
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestUpstreamError_TemplateDataHidesBody(t *testing.T) {
	body := []byte(`<html>panic: runtime error at /srv/app/internal/db.go:42 password=hunter2</html>`)
	code, detail := ParseUpstreamBody(body)
	err := &UpstreamError{Endpoint: EndpointResource, Status: 500, Code: code, Detail: detail}

	data := err.TemplateData()
	assert.Equal(t, DetailUnparsedBody, data["Detail"])
	assert.NotContains(t, err.Error(), "hunter2")
}
