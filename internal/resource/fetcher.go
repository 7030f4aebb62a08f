package resource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/token"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/metrics"
	"github.com/amoylab/oauthprobe/pkg/trace"
)

const maxBody = 1 << 20

// Refresher trades a token's refresh token for a new, selected token
type Refresher interface {
	Refresh(ctx context.Context, sess *session.Session, tok *database.Token) (*database.Token, error)
}

// Request overrides the configured resource target. Empty fields fall back
// to the configuration.
type Request struct {
	URL    string `form:"url" json:"url"`
	Method string `form:"method" json:"method"`
}

// Result is a successful protected resource response
type Result struct {
	Status    int    `json:"status"`
	Body      any    `json:"body"`
	TokenID   string `json:"token_id"`
	Refreshed bool   `json:"refreshed"`
}

// Fetcher calls the protected resource with the session's active token
type Fetcher struct {
	cfg        config.ResourceConfig
	tokens     *token.Store
	refresher  Refresher
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewFetcher(cfg config.ResourceConfig, tokens *token.Store, refresher Refresher, httpClient *http.Client, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		tokens:     tokens,
		refresher:  refresher,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger.Named("resource"),
	}
}

// Fetch presents the active token as a bearer credential. A 401 or 403
// drops the token; when it carries a refresh token the fetch is retried once
// with a refreshed one, otherwise *errorx.AuthRequiredError is returned.
// A failed refresh is returned as the refresher reported it.
func (f *Fetcher) Fetch(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	target, method := f.target(req)
	if target == "" {
		ve := &errorx.ValidationError{}
		ve.Add("url", validator.MsgRequired, nil)
		return nil, ve
	}

	tok, err := f.tokens.Active(ctx, sess)
	if err != nil {
		var nf *errorx.NotFoundError
		if errors.As(err, &nf) {
			f.tokens.ClearActive(sess, sess.ActiveTokenID())
			return nil, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoToken}
		}
		return nil, err
	}

	scope := trace.Tracer(cnst.TraceResource).Start(ctx, cnst.SpanResourceFetch).
		WithAttrs(attribute.String(cnst.AttrClientID, tok.ClientID))
	defer scope.End()
	ctx = scope.Ctx

	status, body, err := f.do(ctx, method, target, tok)
	if err != nil {
		return nil, err
	}
	refreshed := false
	if rejected(status) {
		f.tokens.ClearActive(sess, tok.ID)
		if tok.RefreshToken == "" {
			f.logger.Info("token rejected by resource",
				zap.String("session_id", sess.ID),
				zap.String("token_id", tok.ID),
				zap.Int("status_code", status))
			scope.WithAttrs(attribute.String(cnst.AttrErrorReason, errorx.AuthReasonRejected))
			return nil, &errorx.AuthRequiredError{Reason: errorx.AuthReasonRejected}
		}

		tok, err = f.refresher.Refresh(ctx, sess, tok)
		if err != nil {
			f.logger.Warn("refresh after rejection failed", zap.String("session_id", sess.ID), zap.Error(err))
			scope.WithAttrs(attribute.String(cnst.AttrErrorReason, "refresh_failed"))
			return nil, err
		}
		refreshed = true

		status, body, err = f.do(ctx, method, target, tok)
		if err != nil {
			return nil, err
		}
		if rejected(status) {
			f.tokens.ClearActive(sess, tok.ID)
			scope.WithAttrs(attribute.String(cnst.AttrErrorReason, errorx.AuthReasonRejected))
			return nil, &errorx.AuthRequiredError{Reason: errorx.AuthReasonRejected}
		}
	}
	scope.WithAttrs(attribute.Int(cnst.AttrHTTPStatusCode, status))

	if status < 200 || status > 299 {
		f.logger.Warn("resource request failed",
			zap.String("session_id", sess.ID),
			zap.String("url", target),
			zap.Int("status_code", status),
			zap.ByteString("body", body))
		code, detail := errorx.ParseUpstreamBody(body)
		return nil, &errorx.UpstreamError{Endpoint: errorx.EndpointResource, Status: status, Code: code, Detail: detail}
	}

	return &Result{Status: status, Body: decode(body), TokenID: tok.ID, Refreshed: refreshed}, nil
}

func (f *Fetcher) target(req Request) (string, string) {
	target := strings.TrimSpace(req.URL)
	if target == "" {
		target = f.cfg.URL
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = f.cfg.Method
	}
	if method == "" {
		method = http.MethodPost
	}
	return target, method
}

func (f *Fetcher) do(ctx context.Context, method, target string, tok *database.Token) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, nil, &errorx.UpstreamError{Endpoint: errorx.EndpointResource, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.metrics.UpstreamDone(errorx.EndpointResource, 0, start)
		return 0, nil, &errorx.UpstreamError{Endpoint: errorx.EndpointResource, Err: err}
	}
	defer resp.Body.Close()
	f.metrics.UpstreamDone(errorx.EndpointResource, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, &errorx.UpstreamError{Endpoint: errorx.EndpointResource, Status: resp.StatusCode, Err: err}
	}
	f.logger.Debug("resource responded",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status_code", resp.StatusCode))
	return resp.StatusCode, body, nil
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// decode returns the body as JSON when it is JSON, as text otherwise
func decode(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if gjson.ValidBytes(body) {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	return string(body)
}
