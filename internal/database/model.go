package database

import (
	"time"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
)

// Client is an OAuth2 client registration, entered by hand or obtained
// through dynamic client registration.
type Client struct {
	ClientID                string           `json:"client_id" gorm:"column:client_id;primaryKey;type:varchar(150)"`
	ClientSecret            string           `json:"client_secret" gorm:"type:varchar(150);not null"`
	ClientName              string           `json:"client_name,omitempty" gorm:"type:varchar(50);index"`
	ClientDescription       string           `json:"client_description,omitempty" gorm:"type:text"`
	ClientURI               string           `json:"client_uri,omitempty" gorm:"column:client_uri;type:varchar(255)"`
	LogoURI                 string           `json:"logo_uri,omitempty" gorm:"column:logo_uri;type:varchar(255)"`
	ResponseType            string           `json:"response_type" gorm:"type:varchar(20)"`
	TokenEndpointAuthMethod string           `json:"token_endpoint_auth_method" gorm:"type:varchar(50)"`
	GrantTypes              []cnst.GrantType `json:"grant_types" gorm:"serializer:json;type:text"`
	RedirectURIs            []string         `json:"redirect_uris" gorm:"column:redirect_uris;serializer:json;type:text"`
	Scope                   string           `json:"scope,omitempty" gorm:"type:varchar(600)"`
	Active                  bool             `json:"active" gorm:"not null"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// HasGrant reports whether the client declared g
func (c *Client) HasGrant(g cnst.GrantType) bool {
	for _, v := range c.GrantTypes {
		if v == g {
			return true
		}
	}
	return false
}

// Provider is an authorization server's endpoint set
type Provider struct {
	ProviderName          string    `json:"provider_name" gorm:"column:provider_name;primaryKey;type:varchar(30)"`
	AuthorizationEndpoint string    `json:"authorization_endpoint" gorm:"type:varchar(255);not null"`
	TokenEndpoint         string    `json:"token_endpoint" gorm:"type:varchar(255);not null"`
	RevocationEndpoint    string    `json:"revocation_endpoint,omitempty" gorm:"type:varchar(255)"`
	RegistrationEndpoint  string    `json:"registration_endpoint,omitempty" gorm:"type:varchar(255)"`
	UserinfoEndpoint      string    `json:"userinfo_endpoint,omitempty" gorm:"type:varchar(255)"`
	Active                bool      `json:"active" gorm:"not null"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Token is the result of one successful token endpoint exchange
type Token struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccessToken  string     `json:"access_token" gorm:"type:text;not null"`
	RefreshToken string     `json:"refresh_token,omitempty" gorm:"type:text"`
	ClientID     string     `json:"client_id" gorm:"column:client_id;type:varchar(150);index"`
	ProviderName string     `json:"provider_name,omitempty" gorm:"type:varchar(30)"`
	TokenType    string     `json:"token_type" gorm:"type:varchar(50)"`
	State        string     `json:"state" gorm:"type:varchar(100)"`
	Scope        string     `json:"scope,omitempty" gorm:"type:varchar(600)"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the token carries an expiry that has passed
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

func models() []any {
	return []any{&Client{}, &Provider{}, &Token{}}
}
