package oauth

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/config"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/pkg/trace"
)

const maxUpstreamBody = 1 << 20

// NewHTTPClient builds the client used for every outbound call to
// authorization servers and protected resources.
func NewHTTPClient(cfg config.OAuthConfig) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local test servers
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: trace.Transport(base),
	}
}

// oauthConfig maps a client and provider onto x/oauth2. client_secret_basic
// and anything we cannot sign send credentials in the Authorization header.
func oauthConfig(client *database.Client, provider *database.Provider, redirectURI string) *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.AuthorizationEndpoint,
			TokenURL:  provider.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: redirectURI,
		Scopes:      strings.Fields(client.Scope),
	}
	switch cnst.AuthMethod(client.TokenEndpointAuthMethod) {
	case cnst.AuthMethodClientSecretPost:
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	case cnst.AuthMethodNone:
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams
		cfg.ClientSecret = ""
	}
	return cfg
}

func (e *Engine) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// tokenFromOAuth2 converts an exchange result into an unsaved token
func tokenFromOAuth2(t *oauth2.Token, clientID, providerName, state string) *database.Token {
	tok := &database.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ClientID:     clientID,
		ProviderName: providerName,
		TokenType:    t.Type(),
		State:        state,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		tok.Scope = scope
	}
	if !t.Expiry.IsZero() {
		exp := t.Expiry
		tok.ExpiresAt = &exp
	}
	return tok
}

// upstreamError converts an x/oauth2 failure into an *errorx.UpstreamError.
// The returned status is 0 when no HTTP response was received.
func upstreamError(endpoint string, err error) (*errorx.UpstreamError, int) {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		code, detail := re.ErrorCode, re.ErrorDescription
		if code == "" && detail == "" {
			code, detail = errorx.ParseUpstreamBody(re.Body)
		}
		return &errorx.UpstreamError{Endpoint: endpoint, Status: status, Code: code, Detail: detail}, status
	}
	return &errorx.UpstreamError{Endpoint: endpoint, Err: err}, 0
}

// retrieveBody returns the token endpoint's raw error body for logging
func retrieveBody(err error) []byte {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.Body
	}
	return nil
}
