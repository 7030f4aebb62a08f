package database

import (
	"context"
)

// Database defines the persistence operations of the harness
type Database interface {
	// Close closes the database connection.
	Close() error

	// Transaction runs fn in a transaction carried by the context passed to fn.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateClient stores a new client. Duplicate client_id or client_name
	// fails with *errorx.ConflictError.
	CreateClient(ctx context.Context, client *Client) error
	// GetClient fails with *errorx.NotFoundError for an unknown id.
	GetClient(ctx context.Context, clientID string) (*Client, error)
	ListClients(ctx context.Context) ([]*Client, error)
	SetClientActive(ctx context.Context, clientID string, active bool) error

	CreateProvider(ctx context.Context, provider *Provider) error
	GetProvider(ctx context.Context, name string) (*Provider, error)
	ListProviders(ctx context.Context) ([]*Provider, error)
	SetProviderActive(ctx context.Context, name string, active bool) error

	// CreateToken always inserts; tokens are never updated.
	CreateToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	// ListTokensByClient returns the newest token first.
	ListTokensByClient(ctx context.Context, clientID string) ([]*Token, error)
}
