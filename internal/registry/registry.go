package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
	"github.com/amoylab/oauthprobe/internal/validator"
)

// Registry stores clients and providers and tracks which ones a session has
// selected.
type Registry struct {
	db     database.Database
	logger *zap.Logger
}

func New(db database.Database, logger *zap.Logger) *Registry {
	return &Registry{db: db, logger: logger.Named("registry")}
}

// SaveClient validates and persists a manually entered client
func (r *Registry) SaveClient(ctx context.Context, form validator.ClientForm) (*database.Client, error) {
	in, err := validator.ValidateClient(form)
	if err != nil {
		return nil, err
	}

	client := &database.Client{
		ClientID:                in.ClientID,
		ClientSecret:            in.ClientSecret,
		ClientName:              in.ClientName,
		ClientDescription:       in.ClientDescription,
		ClientURI:               in.ClientURI,
		LogoURI:                 in.LogoURI,
		ResponseType:            in.ResponseType.String(),
		TokenEndpointAuthMethod: in.TokenEndpointAuthMethod.String(),
		GrantTypes:              in.GrantTypes,
		RedirectURIs:            in.RedirectURIs,
		Scope:                   in.Scope,
		Active:                  true,
	}
	if err := r.db.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	r.logger.Info("client saved", zap.String("client_id", client.ClientID))
	return client, nil
}

// RegisterClient persists a client obtained from dynamic registration and
// makes it the session's active client.
func (r *Registry) RegisterClient(ctx context.Context, sess *session.Session, client *database.Client) error {
	client.Active = true
	if err := r.db.CreateClient(ctx, client); err != nil {
		return err
	}
	sess.SetActiveClientID(client.ClientID)
	r.logger.Info("registered client saved",
		zap.String("client_id", client.ClientID),
		zap.String("session_id", sess.ID))
	return nil
}

func (r *Registry) FindClientByID(ctx context.Context, clientID string) (*database.Client, error) {
	return r.db.GetClient(ctx, clientID)
}

func (r *Registry) ListClients(ctx context.Context) ([]*database.Client, error) {
	return r.db.ListClients(ctx)
}

// SetActiveClient selects a client for the session. An unknown id leaves the
// previous selection in place.
func (r *Registry) SetActiveClient(ctx context.Context, sess *session.Session, clientID string) (*database.Client, error) {
	client, err := r.db.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Active {
		if err := r.db.SetClientActive(ctx, clientID, true); err != nil {
			return nil, err
		}
		client.Active = true
	}
	sess.SetActiveClientID(client.ClientID)
	return client, nil
}

// ActiveClient returns the session's selected client
func (r *Registry) ActiveClient(ctx context.Context, sess *session.Session) (*database.Client, error) {
	id := sess.ActiveClientID()
	if id == "" {
		return nil, &errorx.MissingSelectionError{Resource: "client"}
	}
	return r.db.GetClient(ctx, id)
}

// SaveProvider validates and persists a provider
func (r *Registry) SaveProvider(ctx context.Context, form validator.ProviderForm) (*database.Provider, error) {
	p, err := validator.ValidateProvider(form)
	if err != nil {
		return nil, err
	}

	provider := &database.Provider{
		ProviderName:          p.ProviderName,
		AuthorizationEndpoint: p.AuthorizationEndpoint,
		TokenEndpoint:         p.TokenEndpoint,
		RevocationEndpoint:    p.RevocationEndpoint,
		RegistrationEndpoint:  p.RegistrationEndpoint,
		UserinfoEndpoint:      p.UserinfoEndpoint,
		Active:                true,
	}
	if err := r.db.CreateProvider(ctx, provider); err != nil {
		return nil, err
	}
	r.logger.Info("provider saved", zap.String("provider_name", provider.ProviderName))
	return provider, nil
}

func (r *Registry) FindProviderByName(ctx context.Context, name string) (*database.Provider, error) {
	return r.db.GetProvider(ctx, name)
}

func (r *Registry) ListProviders(ctx context.Context) ([]*database.Provider, error) {
	return r.db.ListProviders(ctx)
}

// SetActiveProvider selects a provider for the session. An unknown name
// leaves the previous selection in place.
func (r *Registry) SetActiveProvider(ctx context.Context, sess *session.Session, name string) (*database.Provider, error) {
	provider, err := r.db.GetProvider(ctx, name)
	if err != nil {
		return nil, err
	}
	if !provider.Active {
		if err := r.db.SetProviderActive(ctx, name, true); err != nil {
			return nil, err
		}
		provider.Active = true
	}
	sess.SetActiveProviderName(provider.ProviderName)
	return provider, nil
}

// ActiveProvider returns the session's selected provider
func (r *Registry) ActiveProvider(ctx context.Context, sess *session.Session) (*database.Provider, error) {
	name := sess.ActiveProviderName()
	if name == "" {
		return nil, &errorx.MissingSelectionError{Resource: "provider"}
	}
	return r.db.GetProvider(ctx, name)
}
