package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dolya-app/dolya/internal/domain"
)

// PendingUpdateRepo — репозиторий изменений профиля, ожидающих
// подтверждения OTP-кодом.
type PendingUpdateRepo struct {
	pool *pgxpool.Pool
}

// NewPendingUpdateRepo создаёт новый PendingUpdateRepo.
func NewPendingUpdateRepo(pool *pgxpool.Pool) *PendingUpdateRepo {
	return &PendingUpdateRepo{pool: pool}
}

// Create сохраняет ожидающее изменение.
func (r *PendingUpdateRepo) Create(ctx context.Context, upd *domain.PendingUpdate) error {
	query := `
		INSERT INTO pending_updates (id, user_id, field, new_value, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		upd.ID,
		upd.UserID,
		upd.Field,
		upd.NewValue,
		upd.CreatedAt,
		upd.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending update: %w", err)
	}
	return nil
}

// DeleteExpired удаляет изменения с истёкшим сроком подтверждения.
// Возвращает количество удалённых строк.
func (r *PendingUpdateRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM pending_updates
		WHERE expires_at <= $1
	`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending updates: %w", err)
	}
	return tag.RowsAffected(), nil
}
