package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/amoylab/oauthprobe/internal/common/errorx"
)

// gormDB implements Database on top of any gorm dialector
type gormDB struct {
	db *gorm.DB
}

func open(dialector gorm.Dialector, maxOpenConns int) (*gormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.AutoMigrate(models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &gormDB{db: db}, nil
}

// Close closes the database connection
func (g *gormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txKey struct{}

// InTransaction reports whether ctx carries a transaction opened by Transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

// Transaction joins the transaction already carried by ctx, if any
func (g *gormDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn is the transaction carried by ctx or the pool bound to ctx
func (g *gormDB) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return g.db.WithContext(ctx)
}

func (g *gormDB) CreateClient(ctx context.Context, client *Client) error {
	return g.Transaction(ctx, func(ctx context.Context) error {
		db := g.conn(ctx)
		if err := ensureAbsent(db.Model(&Client{}).Where("client_id = ?", client.ClientID), "client", client.ClientID); err != nil {
			return err
		}
		if client.ClientName != "" {
			if err := ensureAbsent(db.Model(&Client{}).Where("client_name = ?", client.ClientName), "client_name", client.ClientName); err != nil {
				return err
			}
		}
		return translate(db.Create(client).Error, "client", client.ClientID)
	})
}

func (g *gormDB) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var client Client
	err := g.conn(ctx).Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		return nil, translate(err, "client", clientID)
	}
	return &client, nil
}

func (g *gormDB) ListClients(ctx context.Context) ([]*Client, error) {
	var clients []*Client
	err := g.conn(ctx).Order("created_at desc").Find(&clients).Error
	return clients, err
}

func (g *gormDB) SetClientActive(ctx context.Context, clientID string, active bool) error {
	res := g.conn(ctx).Model(&Client{}).Where("client_id = ?", clientID).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &errorx.NotFoundError{Resource: "client", Key: clientID}
	}
	return nil
}

func (g *gormDB) CreateProvider(ctx context.Context, provider *Provider) error {
	return g.Transaction(ctx, func(ctx context.Context) error {
		db := g.conn(ctx)
		if err := ensureAbsent(db.Model(&Provider{}).Where("provider_name = ?", provider.ProviderName), "provider", provider.ProviderName); err != nil {
			return err
		}
		return translate(db.Create(provider).Error, "provider", provider.ProviderName)
	})
}

func (g *gormDB) GetProvider(ctx context.Context, name string) (*Provider, error) {
	var provider Provider
	err := g.conn(ctx).Where("provider_name = ?", name).First(&provider).Error
	if err != nil {
		return nil, translate(err, "provider", name)
	}
	return &provider, nil
}

func (g *gormDB) ListProviders(ctx context.Context) ([]*Provider, error) {
	var providers []*Provider
	err := g.conn(ctx).Order("created_at desc").Find(&providers).Error
	return providers, err
}

func (g *gormDB) SetProviderActive(ctx context.Context, name string, active bool) error {
	res := g.conn(ctx).Model(&Provider{}).Where("provider_name = ?", name).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &errorx.NotFoundError{Resource: "provider", Key: name}
	}
	return nil
}

func (g *gormDB) CreateToken(ctx context.Context, token *Token) error {
	return translate(g.conn(ctx).Create(token).Error, "token", token.ID)
}

func (g *gormDB) GetToken(ctx context.Context, id string) (*Token, error) {
	var token Token
	err := g.conn(ctx).Where("id = ?", id).First(&token).Error
	if err != nil {
		return nil, translate(err, "token", id)
	}
	return &token, nil
}

func (g *gormDB) ListTokensByClient(ctx context.Context, clientID string) ([]*Token, error) {
	var tokens []*Token
	err := g.conn(ctx).
		Where("client_id = ?", clientID).
		Order("created_at desc").
		Find(&tokens).Error
	return tokens, err
}

func ensureAbsent(q *gorm.DB, resource, key string) error {
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &errorx.ConflictError{Resource: resource, Key: key}
	}
	return nil
}

// translate maps driver errors onto the errorx taxonomy
func translate(err error, resource, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &errorx.NotFoundError{Resource: resource, Key: key}
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return &errorx.ConflictError{Resource: resource, Key: key}
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry")
}
