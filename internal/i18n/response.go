package i18n

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/oauthprobe/internal/common/errorx"
)

const msgInternal = "ErrorInternal"

// FieldMessage is one translated field error
type FieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error  string         `json:"error"`
	Fields []FieldMessage `json:"fields,omitempty"`
}

// NewErrorBody translates err for the request's language and returns the
// HTTP status it maps to. Errors outside errorx become a generic 500.
func NewErrorBody(c *gin.Context, err error) (int, ErrorBody) {
	var coded errorx.Coded
	if !errors.As(err, &coded) {
		return http.StatusInternalServerError, ErrorBody{Error: TranslateMessage(c, msgInternal, nil)}
	}

	body := ErrorBody{Error: TranslateMessage(c, coded.MessageID(), coded.TemplateData())}
	var ve *errorx.ValidationError
	if errors.As(err, &ve) {
		for _, f := range ve.Fields {
			body.Fields = append(body.Fields, FieldMessage{
				Field:   f.Field,
				Message: TranslateMessage(c, f.Message, f.Data),
			})
		}
	}
	return coded.StatusCode(), body
}

// RespondWithError sends an appropriate HTTP error response for the given error
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, body := NewErrorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}

// RespondWithSuccess sends a success HTTP response with an internationalized message
func RespondWithSuccess(c *gin.Context, statusCode int, msgID string, data map[string]any, payload any) {
	response := gin.H{
		"message": TranslateMessage(c, msgID, data),
	}

	switch p := payload.(type) {
	case nil:
	case gin.H:
		for k, v := range p {
			response[k] = v
		}
	case map[string]any:
		for k, v := range p {
			response[k] = v
		}
	default:
		response["data"] = payload
	}

	c.JSON(statusCode, response)
}

// RespondOK sends a success HTTP response with status code 200
func RespondOK(c *gin.Context, msgID string, data map[string]any, payload any) {
	RespondWithSuccess(c, http.StatusOK, msgID, data, payload)
}

// RespondCreated sends a success HTTP response with status code 201
func RespondCreated(c *gin.Context, msgID string, data map[string]any, payload any) {
	RespondWithSuccess(c, http.StatusCreated, msgID, data, payload)
}
