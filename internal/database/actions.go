package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/crowdpick/internal/cache"
)

// InsertSessionActions writes a batch of action records in one transaction.
// Sessions seen for the first time get an in-progress row.
func InsertSessionActions(ctx context.Context, records []cache.SessionActionRecord) error {
	if DB == nil {
		return ErrNotConnected
	}
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertSessionActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of session %v: %w", rec.ActionIndex, rec.SessionID, err)
			}
		}
		return nil
	})
}

func insertSessionActionTx(ctx context.Context, tx pgx.Tx, rec cache.SessionActionRecord) error {
	upsertSessionQ := `
		INSERT INTO sessions (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertSessionQ, rec.SessionID); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	ts := time.Now()
	if rec.Timestamp > 0 {
		ts = time.UnixMilli(rec.Timestamp)
	}
	actionInsertQ := `
		INSERT INTO session_actions (
			session_id, action_index, actor_user_id, action_type, action_payload, action_time
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.SessionID, rec.ActionIndex, nullableID(rec.ActorUserID), rec.ActionType, payload, ts,
	)
	return err
}
