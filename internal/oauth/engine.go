package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/registry"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/pkg/metrics"
)

// StartResult is what the browser needs to continue a started flow
type StartResult struct {
	RedirectURL string
	Flow        *session.FlowState
}

// grantHandler starts a flow of one grant type for the selected client and provider
type grantHandler func(ctx context.Context, sess *session.Session, client *database.Client, provider *database.Provider) (*StartResult, error)

// Engine drives OAuth2 flows against authorization servers on behalf of a
// session. It holds no per-session state of its own.
type Engine struct {
	registry   *registry.Registry
	tokens     *token.Store
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
	handlers   map[cnst.GrantType]grantHandler
	now        func() time.Time
}

func NewEngine(reg *registry.Registry, tokens *token.Store, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *Engine {
	e := &Engine{
		registry:   reg,
		tokens:     tokens,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger.Named("oauth.engine"),
		now:        time.Now,
	}
	e.handlers = map[cnst.GrantType]grantHandler{
		cnst.GrantAuthorizationCode: e.startAuthorizationCode,
	}
	return e
}

// Start begins a flow of the given grant type with the session's active
// client and provider. Grant types without a handler fail with
// *errorx.UnsupportedGrantError.
func (e *Engine) Start(ctx context.Context, sess *session.Session, grant cnst.GrantType) (*StartResult, error) {
	handler, ok := e.handlers[grant]
	if !ok {
		return nil, &errorx.UnsupportedGrantError{Grant: grant.String()}
	}

	client, err := e.registry.ActiveClient(ctx, sess)
	if err != nil {
		return nil, err
	}
	provider, err := e.registry.ActiveProvider(ctx, sess)
	if err != nil {
		return nil, err
	}
	return handler(ctx, sess, client, provider)
}

// StartAuthorizationCode is Start for the authorization code grant
func (e *Engine) StartAuthorizationCode(ctx context.Context, sess *session.Session) (*StartResult, error) {
	return e.Start(ctx, sess, cnst.GrantAuthorizationCode)
}

func (e *Engine) transition(flow *session.FlowState, status session.FlowStatus) {
	flow.Transition(status)
	e.metrics.FlowTransition(flow.GrantType.String(), status.String())
}

func (e *Engine) fail(sess *session.Session, flow *session.FlowState, err error) error {
	flow.Fail(err)
	sess.FinishFlow(flow)
	e.metrics.FlowTransition(flow.GrantType.String(), session.FlowFailed.String())
	e.logger.Warn("authorization flow failed",
		zap.String("flow_id", flow.ID),
		zap.String("session_id", sess.ID),
		zap.String("client_id", flow.ClientID),
		zap.Error(err))
	return err
}

// generateNonce returns 32 random bytes encoded url-safe without padding
func generateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
