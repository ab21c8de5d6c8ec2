package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dolya-app/dolya/internal/domain"
)

// UserRepo — репозиторий пользователей.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo создаёт новый UserRepo.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
	id, name, phone_number, email, role, avatar_url,
	card_number, card_holder_name, created_at, updated_at
`

// ListByIDs возвращает пользователей по набору id.
//
// Отсутствующие id молча опускаются: для батчевого lookup-а «не найден» —
// ожидаемый исход, а не ошибка, и ответ может быть короче запроса.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// GetByIdentifier ищет пользователя по телефону или email.
// Возвращает ErrNotFound, если пользователь не существует.
func (r *UserRepo) GetByIdentifier(ctx context.Context, phoneOrEmail string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone_number = $1 OR email = $1
	`
	user, err := scanUser(r.pool.QueryRow(ctx, query, phoneOrEmail))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// GetByID возвращает пользователя по id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// scanner покрывает pgx.Row и pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.PhoneNumber,
		&u.Email,
		&u.Role,
		&u.AvatarURL,
		&u.CardNumber,
		&u.CardHolderName,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
