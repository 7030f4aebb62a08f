package oauth

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/pkg/trace"
)

// Refresh trades tok's refresh token for a new token, saves it and selects it
// for the session. The provider is the one tok was issued by, falling back to
// the session's active provider for tokens that did not record one.
func (e *Engine) Refresh(ctx context.Context, sess *session.Session, tok *database.Token) (*database.Token, error) {
	if tok.RefreshToken == "" {
		return nil, &errorx.AuthRequiredError{Reason: errorx.AuthReasonRejected}
	}

	client, err := e.registry.FindClientByID(ctx, tok.ClientID)
	if err != nil {
		return nil, err
	}
	var provider *database.Provider
	if tok.ProviderName != "" {
		provider, err = e.registry.FindProviderByName(ctx, tok.ProviderName)
	} else {
		provider, err = e.registry.ActiveProvider(ctx, sess)
	}
	if err != nil {
		return nil, err
	}

	scope := trace.Tracer(cnst.TraceOAuth).Start(ctx, cnst.SpanRefresh).
		WithAttrs(
			attribute.String(cnst.AttrGrantType, cnst.GrantRefreshToken.String()),
			attribute.String(cnst.AttrClientID, client.ClientID),
			attribute.String(cnst.AttrProvider, provider.ProviderName),
		)
	defer scope.End()

	cfg := oauthConfig(client, provider, "")
	start := time.Now()
	t, err := cfg.TokenSource(e.withHTTPClient(scope.Ctx), &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		uerr, status := upstreamError(errorx.EndpointToken, err)
		e.metrics.UpstreamDone(errorx.EndpointToken, status, start)
		e.logger.Warn("token refresh failed",
			zap.String("session_id", sess.ID),
			zap.String("token_id", tok.ID),
			zap.Int("status_code", status),
			zap.ByteString("body", retrieveBody(err)),
			zap.Error(uerr))
		return nil, uerr
	}
	e.metrics.UpstreamDone(errorx.EndpointToken, 200, start)

	refreshed := tokenFromOAuth2(t, client.ClientID, provider.ProviderName, tok.State)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if refreshed.Scope == "" {
		refreshed.Scope = tok.Scope
	}
	refreshed, err = e.tokens.Save(ctx, refreshed)
	if err != nil {
		return nil, err
	}
	sess.SetActiveClientID(client.ClientID)
	sess.SetActiveTokenID(refreshed.ID)

	e.logger.Info("token refreshed",
		zap.String("session_id", sess.ID),
		zap.String("old_token_id", tok.ID),
		zap.String("token_id", refreshed.ID))
	return refreshed, nil
}
