package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/resource"
)

type Resource struct {
	fetcher *resource.Fetcher
}

func NewResource(fetcher *resource.Fetcher) *Resource {
	return &Resource{fetcher: fetcher}
}

// Fetch calls the protected resource with the session's active token
func (h *Resource) Fetch(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req resource.Request
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	res, err := h.fetcher.Fetch(c.Request.Context(), sess, req)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessResourceFetched", nil, gin.H{"result": res})
}
