package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/suPer8Hu/sitechat/internal/logger"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the conversations table, or brings a table from an older
// schema forward by adding the user_id column. Forward-only and idempotent.
func (r *Repo) Migrate(ctx context.Context) error {
	m := r.db.WithContext(ctx).Migrator()
	if !m.HasTable(&Conversation{}) {
		return m.CreateTable(&Conversation{})
	}
	if !m.HasColumn(&Conversation{}, "UserID") {
		logger.Log.WithField("table", Conversation{}.TableName()).Info("adding user_id column")
		return m.AddColumn(&Conversation{}, "UserID")
	}
	return nil
}

// LoadBySession returns (nil, nil) when the session has no conversation yet.
func (r *Repo) LoadBySession(ctx context.Context, sessionID string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *Repo) Create(ctx context.Context, sessionID string, accountID uint64, msgs []Message) (*Conversation, error) {
	blob, err := EncodeTranscript(msgs)
	if err != nil {
		return nil, err
	}
	c := &Conversation{
		SessionID:  sessionID,
		UserID:     &accountID,
		Transcript: blob,
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
		}
		return nil, err
	}
	return c, nil
}

// Update replaces the whole transcript and account of the session's row.
func (r *Repo) Update(ctx context.Context, sessionID string, accountID uint64, msgs []Message) error {
	blob, err := EncodeTranscript(msgs)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"conversation": blob,
			"user_id":      accountID,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersist, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: no conversation row for session %s", ErrPersist, sessionID)
	}
	return nil
}

// List returns conversations newest first.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []Conversation
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Conversation{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Each walks every conversation newest first in batches, for exports.
func (r *Repo) Each(ctx context.Context, fn func(Conversation) error) error {
	const batch = 200
	for offset := 0; ; offset += batch {
		var rows []Conversation
		if err := r.db.WithContext(ctx).
			Order("created_at DESC").
			Order("id DESC").
			Limit(batch).
			Offset(offset).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, c := range rows {
			if err := fn(c); err != nil {
				return err
			}
		}
		if len(rows) < batch {
			return nil
		}
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	// sqlite drivers without an error translator
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
