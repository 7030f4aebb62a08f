package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/oauthprobe/internal/apiserver/middleware"
	"github.com/amoylab/oauthprobe/internal/auth/jwt"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/correlator"
	"github.com/amoylab/oauthprobe/internal/i18n"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

var ErrNoCredentials = errors.New("session.username and session.password or session.password_hash must be set")

// Auth handles operator login and the session summary
type Auth struct {
	forms
	cfg          *config.Config
	jwtService   *jwt.Service
	sessions     *session.MemoryStore
	registry     *registry.Registry
	tokens       *token.Store
	passwordHash []byte
	logger       *zap.Logger
}

func NewAuth(cfg *config.Config, jwtService *jwt.Service, sessions *session.MemoryStore, reg *registry.Registry,
	tokens *token.Store, store correlator.Store, m *metrics.Metrics, logger *zap.Logger) (*Auth, error) {
	if cfg.Session.Username == "" {
		return nil, ErrNoCredentials
	}
	hash := []byte(cfg.Session.PasswordHash)
	if len(hash) == 0 {
		if cfg.Session.Password == "" {
			return nil, ErrNoCredentials
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Session.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}
	return &Auth{
		forms:        forms{store: store, metrics: m, ttl: cfg.Correlator.TTL},
		cfg:          cfg,
		jwtService:   jwtService,
		sessions:     sessions,
		registry:     reg,
		tokens:       tokens,
		passwordHash: hash,
		logger:       logger.Named("handler.auth"),
	}, nil
}

// LoginForm issues the req_id for a login. A next query parameter is kept
// for the redirect after login.
func (h *Auth) LoginForm(c *gin.Context) {
	h.issue(c)
}

// Login checks the operator credentials, opens a session and sets the cookie
func (h *Auth) Login(c *gin.Context) {
	var form validator.LoginForm
	if !bind(c, &form) {
		return
	}
	if err := validator.ValidateLogin(form); err != nil {
		i18n.RespondWithError(c, err)
		return
	}

	username := strings.TrimSpace(form.Username)
	if username != h.cfg.Session.Username ||
		bcrypt.CompareHashAndPassword(h.passwordHash, []byte(form.Password)) != nil {
		h.logger.Warn("login rejected", zap.String("username", username), zap.String("client_ip", c.ClientIP()))
		i18n.RespondWithError(c, &errorx.AuthRequiredError{Reason: errorx.AuthReasonInvalidCredentials})
		return
	}

	sess := h.sessions.Create(username)
	tok, err := h.jwtService.GenerateToken(username, sess.ID)
	if err != nil {
		h.sessions.Delete(sess.ID)
		h.logger.Error("failed to sign session token", zap.Error(err))
		i18n.RespondWithError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, tok, int(h.jwtService.Duration().Seconds()),
		h.cfg.Server.BasePath, "", h.cfg.Session.Secure, true)
	h.logger.Info("operator logged in", zap.String("username", username), zap.String("session_id", sess.ID))

	c.Redirect(http.StatusFound, h.next(middleware.GetPending(c).Get("next")))
}

// next keeps redirects on this server under the base path
func (h *Auth) next(target string) string {
	base := h.cfg.Server.BasePath
	if strings.HasPrefix(target, base+"/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, "\\") {
		return target
	}
	return base + "/home"
}

func (h *Auth) Logout(c *gin.Context) {
	if sess := middleware.GetSession(c); sess != nil {
		h.sessions.Delete(sess.ID)
		h.logger.Info("operator logged out", zap.String("session_id", sess.ID))
	}
	c.SetCookie(h.cfg.Session.CookieName, "", -1, h.cfg.Server.BasePath, "", h.cfg.Session.Secure, true)
	c.Redirect(http.StatusFound, h.cfg.Server.BasePath+"/login")
}

// Home summarizes the session: the selections and the last flows
func (h *Auth) Home(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	payload := gin.H{"session": sess.View()}

	if client, err := h.registry.ActiveClient(ctx, sess); err == nil {
		payload["client"] = client
	}
	if provider, err := h.registry.ActiveProvider(ctx, sess); err == nil {
		payload["provider"] = provider
	}
	if tok, err := h.tokens.Active(ctx, sess); err == nil {
		payload["token"] = tok
	}
	c.JSON(http.StatusOK, payload)
}
