package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/oauth"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

// Token handles token listing and the authorization flow endpoints
type Token struct {
	forms
	registry *registry.Registry
	tokens   *token.Store
	engine   *oauth.Engine
	logger   *zap.Logger
}

func NewToken(cfg *config.Config, reg *registry.Registry, tokens *token.Store, engine *oauth.Engine,
	store correlator.Store, m *metrics.Metrics, logger *zap.Logger) *Token {
	return &Token{
		forms:    forms{store: store, metrics: m, ttl: cfg.Correlator.TTL},
		registry: reg,
		tokens:   tokens,
		engine:   engine,
		logger:   logger.Named("handler.token"),
	}
}

// List returns the tokens of the session's active client
func (h *Token) List(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	client, err := h.registry.ActiveClient(ctx, sess)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	tokens, err := h.tokens.ListByClient(ctx, client.ClientID)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client_id":       client.ClientID,
		"tokens":          tokens,
		"active_token_id": sess.ActiveTokenID(),
	})
}

func (h *Token) Get(c *gin.Context) {
	tok, err := h.tokens.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

func (h *Token) Activate(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	tok, err := h.tokens.SetActive(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessTokenActivated", nil, gin.H{"token": tok})
}

func (h *Token) StartForm(c *gin.Context) {
	h.issue(c)
}

type startForm struct {
	GrantType string `form:"grant_type" json:"grant_type"`
}

// Start begins a grant with the active client and provider and sends the
// browser to the authorization endpoint
func (h *Token) Start(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var form startForm
	if !bind(c, &form) {
		return
	}

	raw := strings.TrimSpace(form.GrantType)
	if raw == "" {
		raw = cnst.GrantAuthorizationCode.String()
	}
	grant, err := cnst.ParseGrantType(raw)
	if err != nil {
		names := make([]string, 0, len(cnst.GrantTypes))
		for _, g := range cnst.GrantTypes {
			names = append(names, g.String())
		}
		ve := &errorx.ValidationError{}
		ve.Add("grant_type", validator.MsgOneOf, map[string]any{"Allowed": strings.Join(names, ", ")})
		i18n.RespondWithError(c, ve)
		return
	}

	res, err := h.engine.Start(c.Request.Context(), sess, grant)
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, res.RedirectURL)
}

// Callback receives the authorization server's redirect
func (h *Token) Callback(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	tok, err := h.engine.HandleCallback(c.Request.Context(), sess, c.Request.URL.Query())
	if err != nil {
		i18n.RespondWithError(c, err)
		return
	}
	i18n.RespondOK(c, "SuccessTokenIssued", nil, gin.H{"token": tok, "flow": sess.View().LastFlow})
}
