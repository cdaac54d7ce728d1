package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

const historyColumns = `id, user_id, entry_type, original_text, result_text, mode,
	source_language, target_language, quality, status, created_at`

// InsertHistory stores a completed operation. Entries are never updated.
func (s *Store) InsertHistory(ctx context.Context, e models.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_entries (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`,
		e.ID,
		e.UserID,
		string(e.Type),
		e.OriginalText,
		e.ResultText,
		e.Mode,
		e.SourceLanguage,
		e.TargetLanguage,
		e.Quality,
		e.Status,
		toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ListHistory returns the newest entries of one type, at most limit.
func (s *Store) ListHistory(ctx context.Context, userID string, typ models.HistoryType, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM history_entries
		WHERE user_id = $1 AND entry_type = $2
		ORDER BY created_at DESC
		LIMIT $3;
	`, userID, string(typ), limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHistory loads one entry owned by userID.
func (s *Store) GetHistory(ctx context.Context, userID, id string) (models.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM history_entries
		WHERE id = $1 AND user_id = $2;
	`, id, userID)
	e, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryEntry{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (models.HistoryEntry, error) {
	var (
		e         models.HistoryEntry
		typ       string
		createdAt int64
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&typ,
		&e.OriginalText,
		&e.ResultText,
		&e.Mode,
		&e.SourceLanguage,
		&e.TargetLanguage,
		&e.Quality,
		&e.Status,
		&createdAt,
	); err != nil {
		return models.HistoryEntry{}, err
	}
	e.Type = models.HistoryType(typ)
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}
