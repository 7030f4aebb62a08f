package validator

import (
	"strings"

	"github.com/ifuryst/lol"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
)

// RegistrationForm is the raw client metadata submitted for dynamic client
// registration. RedirectURIs and GrantTypes entries may hold comma separated
// lists; the validate tags apply after they are split.
type RegistrationForm struct {
	ClientName              string   `form:"client_name" json:"client_name" validate:"omitempty,min=10,max=50,token"`
	ClientURI               string   `form:"client_uri" json:"client_uri" validate:"omitempty,absuri"`
	LogoURI                 string   `form:"logo_uri" json:"logo_uri" validate:"omitempty,absuri"`
	RedirectURIs            []string `form:"redirect_uris" json:"redirect_uris" validate:"min=1,max=5,dive,absuri"`
	GrantTypes              []string `form:"grant_types" json:"grant_types" validate:"min=1,dive,oneof=authorization_code implicit client_credentials refresh_token"`
	ResponseType            string   `form:"response_type" json:"response_type" validate:"required,oneof=code token"`
	TokenEndpointAuthMethod string   `form:"token_endpoint_auth_method" json:"token_endpoint_auth_method" validate:"oneof=none client_secret_basic client_secret_post client_secret_jwt private_key_jwt"`
	Scope                   string   `form:"scope" json:"scope" validate:"omitempty,scope"`
}

// Registration is validated, normalized client metadata
type Registration struct {
	ClientName              string
	ClientURI               string
	LogoURI                 string
	RedirectURIs            []string
	GrantTypes              []cnst.GrantType
	ResponseType            cnst.ResponseType
	TokenEndpointAuthMethod cnst.AuthMethod
	Scope                   string
}

// ClientForm is a manually entered client: the credentials the authorization
// server issued out of band plus registration metadata.
type ClientForm struct {
	ClientID          string `form:"client_id" json:"client_id" validate:"required,min=8,max=150,credential"`
	ClientSecret      string `form:"client_secret" json:"client_secret" validate:"required,min=8,max=150,credential"`
	ClientDescription string `form:"client_description" json:"client_description" validate:"max=500"`
	RegistrationForm
}

type ClientInput struct {
	Registration
	ClientID          string
	ClientSecret      string
	ClientDescription string
}

type ProviderForm struct {
	ProviderName          string `form:"provider_name" json:"provider_name" validate:"required,min=3,max=30,providername"`
	AuthorizationEndpoint string `form:"authorization_endpoint" json:"authorization_endpoint" validate:"required,absuri"`
	TokenEndpoint         string `form:"token_endpoint" json:"token_endpoint" validate:"required,absuri"`
	RevocationEndpoint    string `form:"revocation_endpoint" json:"revocation_endpoint" validate:"omitempty,absuri"`
	RegistrationEndpoint  string `form:"registration_endpoint" json:"registration_endpoint" validate:"omitempty,absuri"`
	UserinfoEndpoint      string `form:"userinfo_endpoint" json:"userinfo_endpoint" validate:"omitempty,absuri"`
}

type LoginForm struct {
	Username string `form:"username" json:"username" validate:"required,min=8,max=20"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=30,alphanum"`
}

// ValidateRegistration checks registration metadata. The error, when not nil,
// is an *errorx.ValidationError listing every failed field in form order.
func ValidateRegistration(f RegistrationForm) (*Registration, error) {
	n := normalizeRegistration(f)
	if err := check(n); err != nil {
		return nil, err
	}
	return registrationOf(n), nil
}

// ValidateClient checks a manually entered client with the same metadata
// rules as registration.
func ValidateClient(f ClientForm) (*ClientInput, error) {
	n := ClientForm{
		ClientID:          strings.TrimSpace(f.ClientID),
		ClientSecret:      strings.TrimSpace(f.ClientSecret),
		ClientDescription: strings.TrimSpace(f.ClientDescription),
		RegistrationForm:  normalizeRegistration(f.RegistrationForm),
	}
	if err := check(n); err != nil {
		return nil, err
	}
	return &ClientInput{
		Registration:      *registrationOf(n.RegistrationForm),
		ClientID:          n.ClientID,
		ClientSecret:      n.ClientSecret,
		ClientDescription: n.ClientDescription,
	}, nil
}

func normalizeRegistration(f RegistrationForm) RegistrationForm {
	n := RegistrationForm{
		ClientName:              strings.TrimSpace(f.ClientName),
		ClientURI:               strings.TrimSpace(f.ClientURI),
		LogoURI:                 strings.TrimSpace(f.LogoURI),
		RedirectURIs:            splitList(f.RedirectURIs, ","),
		GrantTypes:              lol.UniqSlice(splitList(f.GrantTypes, ",")),
		ResponseType:            strings.TrimSpace(f.ResponseType),
		TokenEndpointAuthMethod: strings.TrimSpace(f.TokenEndpointAuthMethod),
		Scope:                   strings.Join(strings.Fields(f.Scope), " "),
	}
	if n.TokenEndpointAuthMethod == "" {
		n.TokenEndpointAuthMethod = string(cnst.AuthMethodClientSecretBasic)
	}
	return n
}

// registrationOf converts a form that already passed validation
func registrationOf(f RegistrationForm) *Registration {
	reg := &Registration{
		ClientName:              f.ClientName,
		ClientURI:               f.ClientURI,
		LogoURI:                 f.LogoURI,
		RedirectURIs:            f.RedirectURIs,
		ResponseType:            cnst.ResponseType(f.ResponseType),
		TokenEndpointAuthMethod: cnst.AuthMethod(f.TokenEndpointAuthMethod),
		Scope:                   f.Scope,
	}
	for _, raw := range f.GrantTypes {
		g, _ := cnst.ParseGrantType(raw)
		reg.GrantTypes = append(reg.GrantTypes, g)
	}
	return reg
}

// ValidateProvider checks a provider definition and returns it trimmed
func ValidateProvider(f ProviderForm) (*ProviderForm, error) {
	p := &ProviderForm{
		ProviderName:          strings.TrimSpace(f.ProviderName),
		AuthorizationEndpoint: strings.TrimSpace(f.AuthorizationEndpoint),
		TokenEndpoint:         strings.TrimSpace(f.TokenEndpoint),
		RevocationEndpoint:    strings.TrimSpace(f.RevocationEndpoint),
		RegistrationEndpoint:  strings.TrimSpace(f.RegistrationEndpoint),
		UserinfoEndpoint:      strings.TrimSpace(f.UserinfoEndpoint),
	}
	if err := check(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateLogin checks the shape of login credentials, not their correctness
func ValidateLogin(f LoginForm) error {
	return check(LoginForm{
		Username: strings.TrimSpace(f.Username),
		Password: f.Password,
	})
}
