package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/oauthprobe/internal/apiserver/middleware"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

const msgBadRequest = "ErrorBadRequest"

// forms issues pending request ids for the GET half of every form exchange
type forms struct {
	store   correlator.Store
	metrics *metrics.Metrics
	ttl     time.Duration
}

// issue answers a form GET with a fresh req_id bound to the query
func (f forms) issue(c *gin.Context) {
	id, err := middleware.IssueRequestKey(c, f.store, f.metrics)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessFormIssued", nil, gin.H{
		"req_id":     id,
		"expires_in": int(f.ttl.Seconds()),
	})
}

// currentSession returns the authenticated session or answers 401
func currentSession(c *gin.Context) (*session.Session, bool) {
	sess := middleware.GetSession(c)
	if sess == nil {
		i18n.RespondWithError(c, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoSession})
		return nil, false
	}
	return sess, true
}

// bind decodes the request body, answering 400 on malformed input
func bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, i18n.ErrorBody{Error: i18n.TranslateMessage(c, msgBadRequest, nil)})
		return false
	}
	return true
}
