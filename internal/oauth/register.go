package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/validator"
	"github.com/amoylab/oauthprobe/pkg/trace"
)

// registrationRequest is the client metadata document of RFC 7591
type registrationRequest struct {
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

// Register validates the submitted metadata, registers a client at the active
// provider's registration endpoint and saves the issued credentials as the
// session's active client. Invalid input never reaches the network.
func (e *Engine) Register(ctx context.Context, sess *session.Session, form validator.RegistrationForm) (*database.Client, error) {
	reg, err := validator.ValidateRegistration(form)
	if err != nil {
		return nil, err
	}

	provider, err := e.registry.ActiveProvider(ctx, sess)
	if err != nil {
		return nil, err
	}
	if provider.RegistrationEndpoint == "" {
		ve := &errorx.ValidationError{}
		ve.Add("registration_endpoint", validator.MsgRequired, nil)
		return nil, ve
	}

	scope := trace.Tracer(cnst.TraceOAuth).Start(ctx, cnst.SpanRegister).
		WithAttrs(attribute.String(cnst.AttrProvider, provider.ProviderName))
	defer scope.End()

	body, err := e.postRegistration(scope.Ctx, provider.RegistrationEndpoint, newRegistrationRequest(reg))
	if err != nil {
		e.logger.Warn("client registration failed",
			zap.String("session_id", sess.ID),
			zap.String("provider", provider.ProviderName),
			zap.Error(err))
		return nil, err
	}

	client, err := clientFromRegistration(reg, body)
	if err != nil {
		return nil, err
	}
	if err := e.registry.RegisterClient(ctx, sess, client); err != nil {
		return nil, err
	}
	scope.WithAttrs(attribute.String(cnst.AttrClientID, client.ClientID))

	e.logger.Info("client registered",
		zap.String("session_id", sess.ID),
		zap.String("provider", provider.ProviderName),
		zap.String("client_id", client.ClientID))
	return client, nil
}

func newRegistrationRequest(reg *validator.Registration) registrationRequest {
	grants := make([]string, 0, len(reg.GrantTypes))
	for _, g := range reg.GrantTypes {
		grants = append(grants, g.String())
	}
	return registrationRequest{
		ClientName:              reg.ClientName,
		ClientURI:               reg.ClientURI,
		LogoURI:                 reg.LogoURI,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              grants,
		ResponseTypes:           []string{reg.ResponseType.String()},
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod.String(),
		Scope:                   reg.Scope,
	}
}

func (e *Engine) postRegistration(ctx context.Context, endpoint string, payload registrationRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &errorx.UpstreamError{Endpoint: errorx.EndpointRegistration, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.metrics.UpstreamDone(errorx.EndpointRegistration, 0, start)
		return nil, &errorx.UpstreamError{Endpoint: errorx.EndpointRegistration, Err: err}
	}
	defer resp.Body.Close()
	e.metrics.UpstreamDone(errorx.EndpointRegistration, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, &errorx.UpstreamError{Endpoint: errorx.EndpointRegistration, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, detail := errorx.ParseUpstreamBody(body)
		e.logger.Warn("registration endpoint rejected request",
			zap.String("registration_endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, &errorx.UpstreamError{
			Endpoint: errorx.EndpointRegistration,
			Status:   resp.StatusCode,
			Code:     code,
			Detail:   detail,
		}
	}
	return body, nil
}

// clientFromRegistration builds the client to save from the submitted
// metadata and the server's response. Values the server echoes back win.
func clientFromRegistration(reg *validator.Registration, body []byte) (*database.Client, error) {
	if !gjson.ValidBytes(body) {
		return nil, &errorx.UpstreamError{Endpoint: errorx.EndpointRegistration, Status: http.StatusOK, Detail: "response is not JSON"}
	}
	res := gjson.ParseBytes(body)

	client := &database.Client{
		ClientID:                res.Get("client_id").String(),
		ClientSecret:            res.Get("client_secret").String(),
		ClientName:              reg.ClientName,
		ClientURI:               reg.ClientURI,
		LogoURI:                 reg.LogoURI,
		ResponseType:            reg.ResponseType.String(),
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod.String(),
		GrantTypes:              reg.GrantTypes,
		RedirectURIs:            reg.RedirectURIs,
		Scope:                   reg.Scope,
	}
	if client.ClientID == "" || client.ClientSecret == "" {
		return nil, &errorx.UpstreamError{
			Endpoint: errorx.EndpointRegistration,
			Status:   http.StatusOK,
			Detail:   "response is missing client_id or client_secret",
		}
	}

	if v := res.Get("client_name").String(); v != "" {
		client.ClientName = v
	}
	if v := res.Get("client_uri").String(); v != "" {
		client.ClientURI = v
	}
	if v := res.Get("logo_uri").String(); v != "" {
		client.LogoURI = v
	}
	if v := res.Get("scope").String(); v != "" {
		client.Scope = v
	}
	if v := res.Get("token_endpoint_auth_method").String(); v != "" {
		client.TokenEndpointAuthMethod = v
	}
	if arr := res.Get("redirect_uris").Array(); len(arr) > 0 {
		uris := make([]string, 0, len(arr))
		for _, u := range arr {
			uris = append(uris, u.String())
		}
		client.RedirectURIs = uris
	}
	if arr := res.Get("grant_types").Array(); len(arr) > 0 {
		var grants []cnst.GrantType
		for _, v := range arr {
			if g, err := cnst.ParseGrantType(v.String()); err == nil {
				grants = append(grants, g)
			}
		}
		if len(grants) > 0 {
			client.GrantTypes = grants
		}
	}
	if arr := res.Get("response_types").Array(); len(arr) > 0 && arr[0].String() != "" {
		client.ResponseType = arr[0].String()
	}
	return client, nil
}
