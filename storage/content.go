package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shrey-Parekh/game-arena/domain"
)

// Content bank queries. Each returns one freshly drawn item outside the
// exclusion list, or domain.ErrContentExhausted when the filtered pool is
// empty. Exhaustion is distinguishable from a transport failure so callers
// can reset their exclusion list and retry.

func (repo *PostgresRepo) RandomQuestion(ctx context.Context, questionType, spiceLevel string, excludeIDs []string) (domain.Question, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	row := repo.pool.QueryRow(ctx,
		`SELECT id::text, type, spice_level, content, points
		 FROM truth_or_dare_questions
		 WHERE type = $1
		   AND ($2 = '' OR spice_level = $2)
		   AND NOT (id::text = ANY($3))
		 ORDER BY random()
		 LIMIT 1`,
		questionType, spiceLevel, excludeIDs)

	var q domain.Question
	err := row.Scan(&q.ID, &q.Type, &q.SpiceLevel, &q.Content, &q.Points)
	if err != nil {
		return domain.Question{}, contentErr(err)
	}
	return q, nil
}

func (repo *PostgresRepo) RandomPromptPair(ctx context.Context, excludeIDs []string) (domain.PromptPair, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	row := repo.pool.QueryRow(ctx,
		`SELECT id::text, category, regular_prompt, imposter_prompt
		 FROM imposter_prompts
		 WHERE NOT (id::text = ANY($1))
		 ORDER BY random()
		 LIMIT 1`,
		excludeIDs)

	var p domain.PromptPair
	err := row.Scan(&p.ID, &p.Category, &p.Regular, &p.Imposter)
	if err != nil {
		return domain.PromptPair{}, contentErr(err)
	}
	return p, nil
}

func (repo *PostgresRepo) RandomStatement(ctx context.Context, categories []string, excludeIDs []string) (domain.Statement, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	row := repo.pool.QueryRow(ctx,
		`SELECT id::text, category, statement
		 FROM never_have_i_ever_statements
		 WHERE category = ANY($1)
		   AND NOT (id::text = ANY($2))
		 ORDER BY random()
		 LIMIT 1`,
		categories, excludeIDs)

	var st domain.Statement
	err := row.Scan(&st.ID, &st.Category, &st.Text)
	if err != nil {
		return domain.Statement{}, contentErr(err)
	}
	return st, nil
}

func contentErr(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrContentExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
}
