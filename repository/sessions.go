// Package repository provides Bun-backed persistence for portal
// sessions, letting a server-rendered deployment keep its session across
// restarts.
package repository

import (
	"context"
	"database/sql"
	"time"

	portal "github.com/goliatone/go-portal-session"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionRecord is the Bun model for a persisted session. The scope
// column keys one record per logical session owner (a deployment, a
// device, a browser profile) so the credential triple can be replaced
// atomically with an upsert.
type SessionRecord struct {
	bun.BaseModel `bun:"table:portal_sessions,alias:pse"`

	ID             uuid.UUID `bun:"id,pk,nullzero,type:uuid"`
	Scope          string    `bun:"scope,notnull,unique"`
	AccessToken    string    `bun:"access_token,notnull"`
	OrganizationID string    `bun:"organization_id"`
	ExpiresAt      string    `bun:"expires_at"`
	CreatedAt      time.Time `bun:"created_at,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,default:current_timestamp"`
}

// SessionStorage implements portal.SessionStorage on top of Bun. The
// embedded repository exposes generic record access for callers that
// manage sessions across scopes (admin tooling, cleanup jobs).
type SessionStorage struct {
	repository.Repository[*SessionRecord]
	db    *bun.DB
	scope string
}

var _ portal.SessionStorage = (*SessionStorage)(nil)

// NewSessionStorage creates a storage bound to one scope. Every Load,
// Save, and Clear operates on the single record for that scope.
func NewSessionStorage(db *bun.DB, scope string) *SessionStorage {
	repo := repository.NewRepository[*SessionRecord](db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(r *SessionRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *SessionRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &SessionStorage{
		Repository: repo,
		db:         db,
		scope:      scope,
	}
}

// Load returns the stored session for the scope, (nil, nil) when absent.
func (s *SessionStorage) Load(ctx context.Context) (*portal.StoredSession, error) {
	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.scope = ?", s.scope).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows || repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &portal.StoredSession{
		AccessToken:    record.AccessToken,
		OrganizationID: record.OrganizationID,
		ExpiresAt:      portal.ParseExpiryMillis(record.ExpiresAt),
	}, nil
}

// Save replaces the scope's record with the given triple in one upsert.
func (s *SessionStorage) Save(ctx context.Context, session portal.StoredSession) error {
	record := &SessionRecord{
		Scope:          s.scope,
		AccessToken:    session.AccessToken,
		OrganizationID: session.OrganizationID,
		ExpiresAt:      session.ExpiryMillis(),
		UpdatedAt:      time.Now(),
	}

	// Derive the record id from the scope so re-saves hit the same row
	// even across schema rebuilds.
	if id, err := hashid.NewUUID(s.scope); err == nil {
		record.ID = id
	} else {
		record.ID = uuid.New()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (scope) DO UPDATE").
			Set("access_token = EXCLUDED.access_token").
			Set("organization_id = EXCLUDED.organization_id").
			Set("expires_at = EXCLUDED.expires_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// Clear removes the scope's record. Clearing an absent record is not an
// error.
func (s *SessionStorage) Clear(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*SessionRecord)(nil)).
			Where("scope = ?", s.scope).
			Exec(ctx)
		return err
	})
}
