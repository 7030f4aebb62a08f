package cnst

import "fmt"

// GrantType is the closed set of OAuth2 grant types a client may declare
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantClientCredentials GrantType = "client_credentials"
	GrantRefreshToken      GrantType = "refresh_token"
)

// GrantTypes lists every known grant type in declaration order
var GrantTypes = []GrantType{
	GrantAuthorizationCode,
	GrantImplicit,
	GrantClientCredentials,
	GrantRefreshToken,
}

func (g GrantType) String() string {
	return string(g)
}

// ParseGrantType maps a wire value onto the enum
func ParseGrantType(s string) (GrantType, error) {
	for _, g := range GrantTypes {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grant type %q", s)
}

type ResponseType string

const (
	ResponseTypeCode  ResponseType = "code"
	ResponseTypeToken ResponseType = "token"
)

func (r ResponseType) String() string {
	return string(r)
}

// ResponseTypes lists the accepted response types
var ResponseTypes = []ResponseType{ResponseTypeCode, ResponseTypeToken}

// RequiredResponseType returns the response type a grant needs, if any
func RequiredResponseType(g GrantType) (ResponseType, bool) {
	switch g {
	case GrantAuthorizationCode:
		return ResponseTypeCode, true
	case GrantImplicit:
		return ResponseTypeToken, true
	default:
		return "", false
	}
}

type AuthMethod string

const (
	AuthMethodNone              AuthMethod = "none"
	AuthMethodClientSecretBasic AuthMethod = "client_secret_basic"
	AuthMethodClientSecretPost  AuthMethod = "client_secret_post"
	AuthMethodClientSecretJWT   AuthMethod = "client_secret_jwt"
	AuthMethodPrivateKeyJWT     AuthMethod = "private_key_jwt"
)

// AuthMethods lists the accepted token endpoint auth methods
var AuthMethods = []AuthMethod{
	AuthMethodNone,
	AuthMethodClientSecretBasic,
	AuthMethodClientSecretPost,
	AuthMethodClientSecretJWT,
	AuthMethodPrivateKeyJWT,
}

func (a AuthMethod) String() string {
	return string(a)
}
