package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/validator"
)

func registrationForm() validator.RegistrationForm {
	return validator.RegistrationForm{
		ClientName:   "harness_test_client",
		RedirectURIs: []string{testRedirect},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		ResponseType: "code",
		Scope:        "read",
	}
}

func registrationEndpoint(t *testing.T, calls *int32, status int, body map[string]any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req registrationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "harness_test_client", req.ClientName)
		assert.Equal(t, []string{testRedirect}, req.RedirectURIs)
		assert.Equal(t, []string{"authorization_code", "refresh_token"}, req.GrantTypes)
		assert.Equal(t, []string{"code"}, req.ResponseTypes)
		assert.Equal(t, "client_secret_basic", req.TokenEndpointAuthMethod)
		writeJSON(w, status, body)
	})
	return mux
}

func TestRegister_Success(t *testing.T) {
	var calls int32
	f := newFixture(t, registrationEndpoint(t, &calls, http.StatusCreated, map[string]any{
		"client_id":     "issued-client-id",
		"client_secret": "issued-secret",
		"scope":         "read profile",
	}))
	f.selectProvider(t)
	ctx := context.Background()

	client, err := f.engine.Register(ctx, f.sess, registrationForm())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "issued-client-id", client.ClientID)
	assert.Equal(t, "issued-secret", client.ClientSecret)
	assert.Equal(t, "read profile", client.Scope)
	assert.Equal(t, []cnst.GrantType{cnst.GrantAuthorizationCode, cnst.GrantRefreshToken}, client.GrantTypes)
	assert.True(t, client.Active)
	assert.Equal(t, "issued-client-id", f.sess.ActiveClientID())

	stored, err := f.registry.FindClientByID(ctx, "issued-client-id")
	require.NoError(t, err)
	assert.Equal(t, "harness_test_client", stored.ClientName)
}

func TestRegister_Rejected(t *testing.T) {
	var calls int32
	f := newFixture(t, registrationEndpoint(t, &calls, http.StatusBadRequest, map[string]any{
		"error":             "invalid_redirect_uri",
		"error_description": "redirect not allowed",
	}))
	f.selectProvider(t)

	var up *errorx.UpstreamError
	_, err := f.engine.Register(context.Background(), f.sess, registrationForm())
	require.ErrorAs(t, err, &up)
	assert.Equal(t, errorx.EndpointRegistration, up.Endpoint)
	assert.Equal(t, http.StatusBadRequest, up.Status)
	assert.Equal(t, "invalid_redirect_uri", up.Code)
	assert.Empty(t, f.sess.ActiveClientID())
}

func TestRegister_IncompleteResponse(t *testing.T) {
	var calls int32
	f := newFixture(t, registrationEndpoint(t, &calls, http.StatusOK, map[string]any{"client_id": "only-id"}))
	f.selectProvider(t)

	var up *errorx.UpstreamError
	_, err := f.engine.Register(context.Background(), f.sess, registrationForm())
	require.ErrorAs(t, err, &up)
	_, err = f.registry.FindClientByID(context.Background(), "only-id")
	assert.Error(t, err)
}

func TestRegister_InvalidInputSkipsNetwork(t *testing.T) {
	var calls int32
	f := newFixture(t, registrationEndpoint(t, &calls, http.StatusCreated, nil))
	f.selectProvider(t)

	form := registrationForm()
	form.ClientName = "short"
	form.RedirectURIs = nil

	var ve *errorx.ValidationError
	_, err := f.engine.Register(context.Background(), f.sess, form)
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("client_name"))
	assert.True(t, ve.Has("redirect_uris"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRegister_NoRegistrationEndpoint(t *testing.T) {
	f := newFixture(t, http.NotFoundHandler())
	ctx := context.Background()
	_, err := f.registry.SaveProvider(ctx, validator.ProviderForm{
		ProviderName:          "no-dcr",
		AuthorizationEndpoint: f.server.URL + "/authorize",
		TokenEndpoint:         f.server.URL + "/token",
	})
	require.NoError(t, err)
	_, err = f.registry.SetActiveProvider(ctx, f.sess, "no-dcr")
	require.NoError(t, err)

	var ve *errorx.ValidationError
	_, err = f.engine.Register(ctx, f.sess, registrationForm())
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("registration_endpoint"))
}

func TestRegister_IssuedCredentialsAreEscapedInBasicAuth(t *testing.T) {
	const (
		issuedID     = "id:with/odd"
		issuedSecret = "s3c r+t=&"
	)
	var authHeader atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"client_id":     issuedID,
			"client_secret": issuedSecret,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "abc123", "token_type": "Bearer"})
	})
	f := newFixture(t, mux)
	f.selectProvider(t)
	ctx := context.Background()

	client, err := f.engine.Register(ctx, f.sess, registrationForm())
	require.NoError(t, err)
	assert.Equal(t, issuedID, client.ClientID)

	res, err := f.engine.StartAuthorizationCode(ctx, f.sess)
	require.NoError(t, err)
	tok, err := f.engine.HandleCallback(ctx, f.sess, url.Values{
		"state": {res.Flow.Nonce},
		"code":  {"the-code"},
	})
	require.NoError(t, err)
	assert.Equal(t, issuedID, tok.ClientID)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id%3Awith%2Fodd:s3c+r%2Bt%3D%26"))
	assert.Equal(t, want, authHeader.Load())
}
