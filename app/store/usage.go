package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

// GetDailyUsage loads the usage row for (userID, date).
func (s *Store) GetDailyUsage(ctx context.Context, userID, date string) (models.UsageRecord, error) {
	var (
		rec       models.UsageRecord
		counts    string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, usage_date, total_operations, operation_counts, updated_at, version
		FROM usage_daily
		WHERE user_id = $1 AND usage_date = $2;
	`, userID, date).Scan(&rec.UserID, &rec.Date, &rec.TotalOperations, &counts, &updatedAt, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UsageRecord{}, ErrNotFound
	}
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("get daily usage: %w", err)
	}

	rec.OperationCounts = map[string]int{}
	if counts != "" {
		if err := json.Unmarshal([]byte(counts), &rec.OperationCounts); err != nil {
			return models.UsageRecord{}, fmt.Errorf("decode operation counts: %w", err)
		}
	}
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func encodeUsage(rec models.UsageRecord) (string, int64, error) {
	counts := rec.OperationCounts
	if counts == nil {
		counts = map[string]int{}
	}
	encoded, err := json.Marshal(counts)
	if err != nil {
		return "", 0, err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	return string(encoded), toMillis(rec.UpdatedAt), nil
}

// UpsertDailyUsage overwrites the row keyed on (user_id, usage_date)
// regardless of its version.
func (s *Store) UpsertDailyUsage(ctx context.Context, rec models.UsageRecord) error {
	counts, updatedAt, err := encodeUsage(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_daily (user_id, usage_date, total_operations, operation_counts, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (user_id, usage_date) DO UPDATE
		SET total_operations = excluded.total_operations,
			operation_counts = excluded.operation_counts,
			updated_at = excluded.updated_at,
			version = usage_daily.version + 1;
	`, rec.UserID, rec.Date, rec.TotalOperations, counts, updatedAt)
	if err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// SaveDailyUsage writes rec only if the stored row still carries
// rec.Version (zero: no row yet). It returns ErrConflict otherwise.
func (s *Store) SaveDailyUsage(ctx context.Context, rec models.UsageRecord) error {
	counts, updatedAt, err := encodeUsage(rec)
	if err != nil {
		return err
	}

	var res sql.Result
	if rec.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO usage_daily (user_id, usage_date, total_operations, operation_counts, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, 1)
			ON CONFLICT (user_id, usage_date) DO NOTHING;
		`, rec.UserID, rec.Date, rec.TotalOperations, counts, updatedAt)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE usage_daily
			SET total_operations = $3,
				operation_counts = $4,
				updated_at = $5,
				version = version + 1
			WHERE user_id = $1 AND usage_date = $2 AND version = $6;
		`, rec.UserID, rec.Date, rec.TotalOperations, counts, updatedAt, rec.Version)
	}
	if err != nil {
		return fmt.Errorf("save daily usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save daily usage: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
