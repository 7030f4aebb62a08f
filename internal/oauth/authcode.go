package oauth

import (
	"context"
	"crypto/subtle"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/trace"
)

func (e *Engine) startAuthorizationCode(ctx context.Context, sess *session.Session, client *database.Client, provider *database.Provider) (*StartResult, error) {
	scope := trace.Tracer(cnst.TraceOAuth).Start(ctx, cnst.SpanFlowStart).
		WithAttrs(
			attribute.String(cnst.AttrGrantType, cnst.GrantAuthorizationCode.String()),
			attribute.String(cnst.AttrClientID, client.ClientID),
			attribute.String(cnst.AttrProvider, provider.ProviderName),
		)
	defer scope.End()

	if !client.HasGrant(cnst.GrantAuthorizationCode) {
		return nil, &errorx.InvalidGrantError{Grant: cnst.GrantAuthorizationCode.String(), ClientID: client.ClientID}
	}
	if len(client.RedirectURIs) == 0 {
		ve := &errorx.ValidationError{}
		ve.Add("redirect_uris", validator.MsgMinItems, map[string]any{"Min": 1})
		return nil, ve
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}

	now := e.now()
	flow := &session.FlowState{
		ID:           uuid.NewString(),
		GrantType:    cnst.GrantAuthorizationCode,
		Client:       client,
		Provider:     provider,
		ClientID:     client.ClientID,
		ProviderName: provider.ProviderName,
		Nonce:        nonce,
		RedirectURI:  client.RedirectURIs[0],
		Status:       session.FlowIdle,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	authURL := oauthConfig(client, provider, flow.RedirectURI).AuthCodeURL(nonce)

	e.transition(flow, session.FlowAwaitingCallback)
	sess.BeginFlow(flow)
	scope.WithAttrs(attribute.String(cnst.AttrFlowID, flow.ID))

	e.logger.Info("authorization flow started",
		zap.String("flow_id", flow.ID),
		zap.String("session_id", sess.ID),
		zap.String("client_id", client.ClientID),
		zap.String("provider", provider.ProviderName))
	return &StartResult{RedirectURL: authURL, Flow: flow}, nil
}

// HandleCallback finishes the session's in-flight authorization code flow
// with the query the authorization server redirected back with. The flow is
// consumed whatever the outcome, so a replayed callback fails with
// *errorx.StateMismatchError.
func (e *Engine) HandleCallback(ctx context.Context, sess *session.Session, query url.Values) (*database.Token, error) {
	scope := trace.Tracer(cnst.TraceOAuth).Start(ctx, cnst.SpanFlowCallback)
	defer scope.End()
	ctx = scope.Ctx

	flow := sess.TakeFlow()

	if code := query.Get("error"); code != "" {
		err := &errorx.UpstreamError{
			Endpoint: errorx.EndpointAuthorize,
			Code:     code,
			Detail:   query.Get("error_description"),
		}
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, code))
		if flow == nil {
			return nil, err
		}
		return nil, e.fail(sess, flow, err)
	}

	if flow == nil {
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, "no_flow"))
		return nil, &errorx.StateMismatchError{NoFlow: true}
	}
	scope.WithAttrs(
		attribute.String(cnst.AttrFlowID, flow.ID),
		attribute.String(cnst.AttrClientID, flow.ClientID),
	)

	state := query.Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(flow.Nonce)) != 1 {
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, "state_mismatch"))
		return nil, e.fail(sess, flow, &errorx.StateMismatchError{})
	}

	code := query.Get("code")
	if code == "" {
		ve := &errorx.ValidationError{}
		ve.Add("code", validator.MsgRequired, nil)
		return nil, e.fail(sess, flow, ve)
	}

	e.transition(flow, session.FlowExchanging)
	tok, err := e.exchange(ctx, flow, code)
	if err != nil {
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, "exchange"))
		return nil, e.fail(sess, flow, err)
	}

	tok, err = e.tokens.Save(ctx, tok)
	if err != nil {
		return nil, e.fail(sess, flow, err)
	}
	sess.SetActiveClientID(flow.ClientID)
	sess.SetActiveTokenID(tok.ID)

	flow.TokenID = tok.ID
	e.transition(flow, session.FlowComplete)
	sess.FinishFlow(flow)
	scope.WithAttrs(attribute.String(cnst.AttrFlowStatus, flow.Status.String()))

	e.logger.Info("authorization flow complete",
		zap.String("flow_id", flow.ID),
		zap.String("session_id", sess.ID),
		zap.String("client_id", flow.ClientID),
		zap.String("token_id", tok.ID))
	return tok, nil
}

func (e *Engine) exchange(ctx context.Context, flow *session.FlowState, code string) (*database.Token, error) {
	cfg := oauthConfig(flow.Client, flow.Provider, flow.RedirectURI)

	start := time.Now()
	t, err := cfg.Exchange(e.withHTTPClient(ctx), code)
	if err != nil {
		uerr, status := upstreamError(errorx.EndpointToken, err)
		e.metrics.UpstreamDone(errorx.EndpointToken, status, start)
		e.logger.Warn("token exchange failed",
			zap.String("flow_id", flow.ID),
			zap.String("token_endpoint", flow.Provider.TokenEndpoint),
			zap.Int("status_code", status),
			zap.ByteString("body", retrieveBody(err)),
			zap.Error(uerr))
		return nil, uerr
	}
	e.metrics.UpstreamDone(errorx.EndpointToken, 200, start)

	return tokenFromOAuth2(t, flow.ClientID, flow.ProviderName, flow.Nonce), nil
}
