package validator

import (
	"strings"
	"testing"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegistrationForm {
	return RegistrationForm{
		ClientName:   "harness_client_01",
		ClientURI:    "https://client.example.com",
		RedirectURIs: []string{"http://localhost:3000/client/callback"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		ResponseType: "code",
		Scope:        "read write",
	}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestValidateRegistration_Valid(t *testing.T) {
	f := validRegistration()
	f.RedirectURIs = []string{"http://localhost:3000/cb, https://app.example.com/cb"}
	f.GrantTypes = []string{"authorization_code,refresh_token", "authorization_code"}
	f.Scope = "  read   write "

	reg, err := ValidateRegistration(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000/cb", "https://app.example.com/cb"}, reg.RedirectURIs)
	assert.ElementsMatch(t, []cnst.GrantType{cnst.GrantAuthorizationCode, cnst.GrantRefreshToken}, reg.GrantTypes)
	assert.Equal(t, cnst.ResponseTypeCode, reg.ResponseType)
	assert.Equal(t, cnst.AuthMethodClientSecretBasic, reg.TokenEndpointAuthMethod)
	assert.Equal(t, "read write", reg.Scope)
}

func TestValidateRegistration_NameAndRedirectURIs(t *testing.T) {
	f := validRegistration()
	f.ClientName = "abcdefghi" // 9 chars
	f.RedirectURIs = []string{"http://a/1,http://a/2,http://a/3,http://a/4,http://a/5,http://a/6"}

	_, err := ValidateRegistration(f)
	assert.Equal(t, []string{"client_name", "redirect_uris"}, fieldsOf(t, err))

	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgLength, ve.Fields[0].Message)
	assert.Equal(t, MsgMaxItems, ve.Fields[1].Message)
}

func TestValidateRegistration_ClientNameOptional(t *testing.T) {
	f := validRegistration()
	f.ClientName = ""
	reg, err := ValidateRegistration(f)
	require.NoError(t, err)
	assert.Empty(t, reg.ClientName)

	f.ClientName = "harness client one"
	_, err = ValidateRegistration(f)
	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "client_name", ve.Fields[0].Field)
	assert.Equal(t, MsgPattern, ve.Fields[0].Message)
}

func TestValidateRegistration_MessageData(t *testing.T) {
	f := validRegistration()
	f.ClientName = strings.Repeat("n", 51)
	f.RedirectURIs = nil
	f.GrantTypes = []string{"authorization_code", "password"}
	f.Scope = "read:all"

	_, err := ValidateRegistration(f)
	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 4)

	assert.Equal(t, MsgLength, ve.Fields[0].Message)
	assert.Equal(t, map[string]any{"Min": 10, "Max": 50}, ve.Fields[0].Data)

	assert.Equal(t, "redirect_uris", ve.Fields[1].Field)
	assert.Equal(t, MsgMinItems, ve.Fields[1].Message)
	assert.Equal(t, map[string]any{"Min": 1}, ve.Fields[1].Data)

	assert.Equal(t, "grant_types", ve.Fields[2].Field)
	assert.Equal(t, MsgOneOf, ve.Fields[2].Message)
	assert.Equal(t, "authorization_code, implicit, client_credentials, refresh_token", ve.Fields[2].Data["Allowed"])

	assert.Equal(t, MsgScope, ve.Fields[3].Message)
}

func TestValidateRegistration_RedirectURIErrorReportedOnce(t *testing.T) {
	f := validRegistration()
	f.RedirectURIs = []string{"/one,/two", "http://localhost/ok"}
	_, err := ValidateRegistration(f)
	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "redirect_uris", ve.Fields[0].Field)
	assert.Equal(t, MsgURI, ve.Fields[0].Message)
}

func TestValidateRegistration_GrantResponseCrossCheck(t *testing.T) {
	f := validRegistration()
	f.GrantTypes = []string{"authorization_code"}
	f.ResponseType = "token"
	_, err := ValidateRegistration(f)
	assert.Equal(t, []string{"response_type"}, fieldsOf(t, err))
	var ve *errorx.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgGrantResponseMismatch, ve.Fields[0].Message)
	assert.Equal(t, map[string]any{"Grant": "authorization_code", "ResponseType": "code"}, ve.Fields[0].Data)

	f.GrantTypes = []string{"implicit"}
	f.ResponseType = "code"
	_, err = ValidateRegistration(f)
	assert.Equal(t, []string{"response_type"}, fieldsOf(t, err))

	f.GrantTypes = []string{"implicit"}
	f.ResponseType = "token"
	_, err = ValidateRegistration(f)
	assert.NoError(t, err)

	// client_credentials accepts either
	f.GrantTypes = []string{"client_credentials"}
	f.ResponseType = "code"
	_, err = ValidateRegistration(f)
	assert.NoError(t, err)
}

func TestValidateRegistration_FieldRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RegistrationForm)
		fields []string
	}{
		{"name with spaces", func(f *RegistrationForm) { f.ClientName = "harness client one" }, []string{"client_name"}},
		{"name with dashes", func(f *RegistrationForm) { f.ClientName = "harness-client-one" }, []string{"client_name"}},
		{"long name", func(f *RegistrationForm) { f.ClientName = strings.Repeat("x", 51) }, []string{"client_name"}},
		{"bad client uri", func(f *RegistrationForm) { f.ClientURI = "not a uri" }, []string{"client_uri"}},
		{"bad logo uri", func(f *RegistrationForm) { f.LogoURI = "http://" }, []string{"logo_uri"}},
		{"no redirect", func(f *RegistrationForm) { f.RedirectURIs = nil }, []string{"redirect_uris"}},
		{"relative redirect", func(f *RegistrationForm) { f.RedirectURIs = []string{"/callback"} }, []string{"redirect_uris"}},
		{"no grants", func(f *RegistrationForm) { f.GrantTypes = nil }, []string{"grant_types"}},
		{"unknown grant", func(f *RegistrationForm) { f.GrantTypes = []string{"password"} }, []string{"grant_types"}},
		{"missing response type", func(f *RegistrationForm) { f.ResponseType = "" }, []string{"response_type"}},
		{"unknown response type", func(f *RegistrationForm) { f.ResponseType = "id_token" }, []string{"response_type"}},
		{"unknown auth method", func(f *RegistrationForm) { f.TokenEndpointAuthMethod = "tls_client_auth" }, []string{"token_endpoint_auth_method"}},
		{"too many scopes", func(f *RegistrationForm) { f.Scope = "a b c d e f g h i j k" }, []string{"scope"}},
		{"non alnum scope", func(f *RegistrationForm) { f.Scope = "read:all" }, []string{"scope"}},
		{"long scope", func(f *RegistrationForm) { f.Scope = strings.Repeat("s", 51) }, []string{"scope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validRegistration()
			tc.mutate(&f)
			_, err := ValidateRegistration(f)
			assert.Equal(t, tc.fields, fieldsOf(t, err))
		})
	}
}

func TestValidateRegistration_ErrorsKeepFormOrder(t *testing.T) {
	_, err := ValidateRegistration(RegistrationForm{
		ClientName:              "short",
		ClientURI:               "bad uri",
		GrantTypes:              []string{"authorization_code"},
		ResponseType:            "code",
		TokenEndpointAuthMethod: "magic",
		Scope:                   "ok not-ok",
	})
	assert.Equal(t, []string{"client_name", "client_uri", "redirect_uris", "token_endpoint_auth_method", "scope"}, fieldsOf(t, err))
}

func TestValidateClient(t *testing.T) {
	f := ClientForm{
		RegistrationForm: validRegistration(),
		ClientID:         "client-0001",
		ClientSecret:     "s3cret-value",
	}
	f.ClientName = ""

	in, err := ValidateClient(f)
	require.NoError(t, err)
	assert.Equal(t, "client-0001", in.ClientID)
	assert.Equal(t, "", in.ClientName)
	assert.Equal(t, []string{"http://localhost:3000/client/callback"}, in.RedirectURIs)

	f.ClientID = "short"
	f.ClientSecret = "has spaces in it"
	f.ClientName = "tiny"
	_, err = ValidateClient(f)
	assert.Equal(t, []string{"client_id", "client_secret", "client_name"}, fieldsOf(t, err))

	_, err = ValidateClient(ClientForm{RegistrationForm: validRegistration()})
	assert.Equal(t, []string{"client_id", "client_secret"}, fieldsOf(t, err))
}

func TestValidateProvider(t *testing.T) {
	p, err := ValidateProvider(ProviderForm{
		ProviderName:          " local-as ",
		AuthorizationEndpoint: "http://localhost:9000/authorize",
		TokenEndpoint:         "http://localhost:9000/token",
		RegistrationEndpoint:  "http://localhost:9000/register",
	})
	require.NoError(t, err)
	assert.Equal(t, "local-as", p.ProviderName)

	_, err = ValidateProvider(ProviderForm{
		ProviderName:          "as",
		AuthorizationEndpoint: "localhost/authorize",
		UserinfoEndpoint:      "nope",
	})
	assert.Equal(t, []string{"provider_name", "authorization_endpoint", "token_endpoint", "userinfo_endpoint"}, fieldsOf(t, err))
}

func TestValidateLogin(t *testing.T) {
	assert.NoError(t, ValidateLogin(LoginForm{Username: "operator1", Password: "asdfg123"}))

	err := ValidateLogin(LoginForm{Username: "op", Password: "bad pass!"})
	assert.Equal(t, []string{"username", "password"}, fieldsOf(t, err))

	err = ValidateLogin(LoginForm{})
	assert.Equal(t, []string{"username", "password"}, fieldsOf(t, err))
}
