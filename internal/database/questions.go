package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/jason-s-yu/crowdpick/internal/questions"
)

// LoadCatalog reads every panel and question, questions in (position, id) order.
func LoadCatalog(ctx context.Context) (*questions.Catalog, error) {
	if DB == nil {
		return nil, ErrNotConnected
	}
	panels, err := loadPanels(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := DB.Query(ctx, `SELECT id, text, panel_id, layer, options FROM questions ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	qs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Question, error) {
		var (
			q       models.Question
			layer   string
			options []byte
		)
		if err := row.Scan(&q.ID, &q.Text, &q.PanelID, &layer, &options); err != nil {
			return q, err
		}
		l, err := models.ParseAnswerLayer(layer)
		if err != nil {
			return q, fmt.Errorf("question %s: %w", q.ID, err)
		}
		q.Layer = l
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return q, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan questions: %w", err)
	}
	return &questions.Catalog{Panels: panels, Questions: qs}, nil
}

func loadPanels(ctx context.Context) ([]models.Panel, error) {
	rows, err := DB.Query(ctx, `SELECT id, name, description, icon, color FROM panels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query panels: %w", err)
	}
	panels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Panel, error) {
		var p models.Panel
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Icon, &p.Color)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan panels: %w", err)
	}
	return panels, nil
}

// SeedCatalog upserts every panel and question of c in one transaction.
// Question positions follow their order in c.
func SeedCatalog(ctx context.Context, c *questions.Catalog) error {
	if DB == nil {
		return ErrNotConnected
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, p := range c.Panels {
			_, err := tx.Exec(ctx, `
				INSERT INTO panels (id, name, description, icon, color)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name, description = EXCLUDED.description,
				    icon = EXCLUDED.icon, color = EXCLUDED.color`,
				p.ID, p.Name, p.Description, p.Icon, p.Color)
			if err != nil {
				return fmt.Errorf("upsert panel %s: %w", p.ID, err)
			}
		}
		for i, q := range c.Questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("question %s options: %w", q.ID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO questions (id, text, panel_id, layer, options, position)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET text = EXCLUDED.text, panel_id = EXCLUDED.panel_id, layer = EXCLUDED.layer,
				    options = EXCLUDED.options, position = EXCLUDED.position`,
				q.ID, q.Text, q.PanelID, string(q.Layer), options, i)
			if err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}
