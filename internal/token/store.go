package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amoylab/oauthprobe/internal/common/errorx"
	"github.com/amoylab/oauthprobe/internal/database"
	"github.com/amoylab/oauthprobe/internal/session"
)

// Store keeps the tokens obtained from token endpoint exchanges. Tokens are
// never modified; a refresh produces a new token.
type Store struct {
	db     database.Database
	logger *zap.Logger
}

func NewStore(db database.Database, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("token.store")}
}

// Save inserts tok under a fresh id
func (s *Store) Save(ctx context.Context, tok *database.Token) (*database.Token, error) {
	tok.ID = uuid.NewString()
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now()
	}
	if err := s.db.CreateToken(ctx, tok); err != nil {
		return nil, err
	}
	s.logger.Info("token saved",
		zap.String("token_id", tok.ID),
		zap.String("client_id", tok.ClientID),
		zap.Bool("has_refresh_token", tok.RefreshToken != ""))
	return tok, nil
}

func (s *Store) ListByClient(ctx context.Context, clientID string) ([]*database.Token, error) {
	return s.db.ListTokensByClient(ctx, clientID)
}

func (s *Store) FindByID(ctx context.Context, id string) (*database.Token, error) {
	return s.db.GetToken(ctx, id)
}

// SetActive selects a token for the session. Unknown ids leave the previous
// selection in place.
func (s *Store) SetActive(ctx context.Context, sess *session.Session, id string) (*database.Token, error) {
	tok, err := s.db.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.SetActiveTokenID(tok.ID)
	return tok, nil
}

// Active returns the session's selected token
func (s *Store) Active(ctx context.Context, sess *session.Session) (*database.Token, error) {
	id := sess.ActiveTokenID()
	if id == "" {
		return nil, &errorx.AuthRequiredError{Reason: errorx.AuthReasonNoToken}
	}
	return s.db.GetToken(ctx, id)
}

// ClearActive drops the session's token selection if it is still id
func (s *Store) ClearActive(sess *session.Session, id string) {
	if sess.ClearActiveToken(id) {
		s.logger.Debug("active token cleared", zap.String("session_id", sess.ID), zap.String("token_id", id))
	}
}
