package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shrey-Parekh/game-arena/domain"
)

// PostgresRepo is the durable persistence collaborator: room/player CRUD and
// the content bank queries. Live game state never touches it.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (repo *PostgresRepo) Close() {
	repo.pool.Close()
}

func (repo *PostgresRepo) SaveRoom(ctx context.Context, code, hostID string, mode string) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO rooms(code, host_id, mode, status) VALUES($1, $2, $3, 'waiting')
		 ON CONFLICT (code) DO UPDATE SET host_id = $2, mode = $3`,
		code, hostID, mode)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (repo *PostgresRepo) DeleteRoom(ctx context.Context, code string) error {
	_, err := repo.pool.Exec(ctx, "DELETE FROM rooms WHERE code = $1", code)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (repo *PostgresRepo) AddPlayer(ctx context.Context, code, userID, username string) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO room_players(room_code, user_id, username) VALUES($1, $2, $3)
		 ON CONFLICT (room_code, user_id) DO NOTHING`,
		code, userID, username)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (repo *PostgresRepo) RemovePlayer(ctx context.Context, code, userID string) error {
	_, err := repo.pool.Exec(ctx,
		"DELETE FROM room_players WHERE room_code = $1 AND user_id = $2", code, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (repo *PostgresRepo) SetRoomStatus(ctx context.Context, code, status string) error {
	tag, err := repo.pool.Exec(ctx, "UPDATE rooms SET status = $2 WHERE code = $1", code, status)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// DeleteExpiredRooms removes rooms created before the expiry horizon and
// returns their codes so the in-memory registry can be trimmed to match.
func (repo *PostgresRepo) DeleteExpiredRooms(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := repo.pool.Query(ctx,
		"DELETE FROM rooms WHERE created_at < $1 RETURNING code", cutoff)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return codes, nil
}
