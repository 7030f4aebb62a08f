package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

// Provider handles authorization server definitions
type Provider struct {
	forms
	registry *registry.Registry
}

func NewProvider(cfg *config.Config, reg *registry.Registry, store correlator.Store, m *metrics.Metrics) *Provider {
	return &Provider{
		forms:    forms{store: store, metrics: m, ttl: cfg.Correlator.TTL},
		registry: reg,
	}
}

func (h *Provider) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	providers, err := h.registry.ListProviders(c.Request.Context())
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers, "active_provider_name": sess.ActiveProviderName()})
}

func (h *Provider) Get(c *gin.Context) {
	provider, err := h.registry.FindProviderByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider})
}

func (h *Provider) AddForm(c *gin.Context) {
	h.issue(c)
}

func (h *Provider) Create(c *gin.Context) {
	var form validator.ProviderForm
	if !bind(c, &form) {
		return
	}
	provider, err := h.registry.SaveProvider(c.Request.Context(), form)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondCreated(c, "SuccessProviderSaved", nil, gin.H{"provider": provider})
}

func (h *Provider) Activate(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	provider, err := h.registry.SetActiveProvider(c.Request.Context(), sess, c.Param("name"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessProviderActivated", nil, gin.H{"provider": provider})
}
