package middleware

import (
	"errors"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

// RequestKey consumes the pending request named by the req_id form field
// before the handler runs. Missing, expired or replayed ids abort with a
// stale submission error. The stored payload is available via GetPending.
func RequestKey(store correlator.Store, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("middleware.request_key")
	return func(c *gin.Context) {
		id := c.PostForm(cnst.RequestKeyParam)
		if id == "" {
			id = c.Query(cnst.RequestKeyParam)
		}
		if id == "" {
			m.PendingRequest("consume", "missing")
			i18n.RespondWithError(c, &errorx.CorrelationError{Reason: errorx.CorrelationReasonNotFoundOrExpired})
			return
		}

		payload, err := store.Consume(c.Request.Context(), id)
		if err != nil {
			var ce *errorx.CorrelationError
			if errors.As(err, &ce) {
				m.PendingRequest("consume", "stale")
			} else {
				m.PendingRequest("consume", "error")
				logger.Error("failed to consume pending request", zap.Error(err))
			}
			i18n.RespondWithError(c, err)
			return
		}

		m.PendingRequest("consume", "ok")
		c.Set(cnst.CtxKeyPending, payload)
		c.Next()
	}
}

// IssueRequestKey parks the request's query under a fresh pending request id
func IssueRequestKey(c *gin.Context, store correlator.Store, m *metrics.Metrics) (string, error) {
	id, err := store.Create(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		m.PendingRequest("create", "error")
		return "", err
	}
	m.PendingRequest("create", "ok")
	return id, nil
}

// GetPending returns the payload consumed by RequestKey
func GetPending(c *gin.Context) url.Values {
	v, ok := c.Get(cnst.CtxKeyPending)
	if !ok {
		return url.Values{}
	}
	payload, _ := v.(url.Values)
	if payload == nil {
		return url.Values{}
	}
	return payload
}
