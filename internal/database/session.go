package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/crowdpick/internal/game"
)

// CreateSessionRow registers a freshly created session as in progress.
func CreateSessionRow(ctx context.Context, sessionID, ownerID uuid.UUID, totalRounds int) error {
	if DB == nil {
		return ErrNotConnected
	}
	q := `
		INSERT INTO sessions (id, owner_id, total_rounds, status, start_time)
		VALUES ($1, $2, $3, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, sessionID, ownerID, totalRounds)
		return e
	})
}

// RecordRoundOutcome stores one resolved round. A replayed round is overwritten.
func RecordRoundOutcome(ctx context.Context, o game.RoundOutcome) error {
	if DB == nil {
		return ErrNotConnected
	}
	q := `
		INSERT INTO answered_questions (session_id, round, player_id, question_id, team, correct, timed_out, points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, round)
		DO UPDATE SET question_id=$4, team=$5, correct=$6, timed_out=$7, points=$8, answered_at=NOW()
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q,
			o.SessionID, o.Round, nullableID(o.PlayerID), o.QuestionID,
			string(o.Team), o.Correct, o.TimedOut, o.Points,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("record round %d of session %v: %w", o.Round, o.SessionID, err)
	}
	return nil
}

// RecordSessionResult finalizes the session row and credits the player's coins
// and best score in the same transaction.
func RecordSessionResult(ctx context.Context, o game.SessionOutcome) error {
	if DB == nil {
		return ErrNotConnected
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO sessions (id, owner_id, mode, status, total_rounds, rounds_played,
			                      score, red_score, blue_score, winner, grade, coins, ended_early, end_time)
			VALUES ($1, $2, $3, 'completed', $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			ON CONFLICT (id) DO UPDATE SET
				mode=$3, status='completed', total_rounds=$4, rounds_played=$5,
				score=$6, red_score=$7, blue_score=$8, winner=$9, grade=$10,
				coins=$11, ended_early=$12, end_time=NOW()
		`
		if _, e := tx.Exec(ctx, upsert,
			o.SessionID, nullableID(o.PlayerID), string(o.Mode), o.TotalRounds, o.RoundsPlayed,
			o.Score, o.RedScore, o.BlueScore, string(o.Winner), string(o.Grade),
			o.Coins, o.EndedEarly,
		); e != nil {
			return e
		}

		if o.PlayerID == uuid.Nil {
			return nil
		}
		best := o.Score
		if o.Mode == game.ModeParty {
			best = o.RedScore + o.BlueScore
		}
		credit := `
			UPDATE users
			SET coins = coins + $1, best_score = GREATEST(best_score, $2)
			WHERE id = $3
		`
		_, e := tx.Exec(ctx, credit, o.Coins, best, o.PlayerID)
		return e
	})
	if err != nil {
		return fmt.Errorf("record result of session %v: %w", o.SessionID, err)
	}
	return nil
}

// MarkSessionAbandoned flags a session still in progress as abandoned.
// It reports whether a row changed.
func MarkSessionAbandoned(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if DB == nil {
		return false, ErrNotConnected
	}
	var changed bool
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE sessions
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		tag, e := tx.Exec(ctx, q, sessionID)
		changed = tag.RowsAffected() > 0
		return e
	})
	return changed, err
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
