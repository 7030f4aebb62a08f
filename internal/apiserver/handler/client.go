package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/oauth"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

// Client handles client records, manual entry and dynamic registration
type Client struct {
	forms
	registry *registry.Registry
	tokens   *token.Store
	engine   *oauth.Engine
	logger   *zap.Logger
}

func NewClient(cfg *config.Config, reg *registry.Registry, tokens *token.Store, engine *oauth.Engine,
	store correlator.Store, m *metrics.Metrics, logger *zap.Logger) *Client {
	return &Client{
		forms:    forms{store: store, metrics: m, ttl: cfg.Correlator.TTL},
		registry: reg,
		tokens:   tokens,
		engine:   engine,
		logger:   logger.Named("handler.client"),
	}
}

func (h *Client) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	clients, err := h.registry.ListClients(c.Request.Context())
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "active_client_id": sess.ActiveClientID()})
}

// Get returns one client with the tokens issued to it
func (h *Client) Get(c *gin.Context) {
	ctx := c.Request.Context()
	client, err := h.registry.FindClientByID(ctx, c.Param("id"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	tokens, err := h.tokens.ListByClient(ctx, client.ClientID)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client, "tokens": tokens})
}

func (h *Client) AddForm(c *gin.Context) {
	h.issue(c)
}

// Create saves a manually entered client
func (h *Client) Create(c *gin.Context) {
	var form validator.ClientForm
	if !bind(c, &form) {
		return
	}
	client, err := h.registry.SaveClient(c.Request.Context(), form)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondCreated(c, "SuccessClientSaved", nil, gin.H{"client": client})
}

func (h *Client) Activate(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	client, err := h.registry.SetActiveClient(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessClientActivated", nil, gin.H{"client": client})
}

func (h *Client) RegisterForm(c *gin.Context) {
	h.issue(c)
}

// Register performs dynamic client registration at the active provider
func (h *Client) Register(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var form validator.RegistrationForm
	if !bind(c, &form) {
		return
	}
	client, err := h.engine.Register(c.Request.Context(), sess, form)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondCreated(c, "SuccessClientRegistered", nil, gin.H{"client": client})
}
