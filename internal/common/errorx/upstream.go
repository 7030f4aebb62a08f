package errorx

import "github.com/tidwall/gjson"

// DetailUnparsedBody replaces the detail of an upstream error whose body is
// not a JSON error document. The body itself only goes to the logs.
const DetailUnparsedBody = "response body is not a JSON error document"

// ParseUpstreamBody extracts the OAuth error code and a description from an
// upstream error body. Only the error, error_description and message members
// are ever returned.
func ParseUpstreamBody(body []byte) (code, detail string) {
	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "error", "error_description", "message")
		code = res[0].String()
		detail = res[1].String()
		if detail == "" {
			detail = res[2].String()
		}
		if code != "" || detail != "" {
			return code, detail
		}
	}
	return "", DetailUnparsedBody
}
