package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/infrastructure/database/entities"
	"github.com/madgic/madgic-chat/internal/infrastructure/metrics"
)

// PostgresRepository archives sessions in the conversations table.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository builds a repository on an open connection.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts or replaces the record with the same id.
func (r *PostgresRepository) Save(ctx context.Context, rec *chat.Record) error {
	defer metrics.RecordDBQuery("save", time.Now())

	row, err := entities.NewSchemaConversation(rec)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "public_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "mode", "stream_mode", "thread_id", "message_count", "messages",
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", rec.ID, err)
	}
	return nil
}

// Load fetches a record by session id.
func (r *PostgresRepository) Load(ctx context.Context, id string) (*chat.Record, error) {
	defer metrics.RecordDBQuery("load", time.Now())

	var row entities.Conversation
	if err := r.db.WithContext(ctx).Where("public_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return row.EtoD()
}

// Delete removes a record by session id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	defer metrics.RecordDBQuery("delete", time.Now())

	res := r.db.WithContext(ctx).Where("public_id = ?", id).Delete(&entities.Conversation{})
	if res.Error != nil {
		return fmt.Errorf("delete conversation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

// List returns every record, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context) ([]*chat.Record, error) {
	defer metrics.RecordDBQuery("list", time.Now())

	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]*chat.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].EtoD()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ chat.Store = (*PostgresRepository)(nil)
