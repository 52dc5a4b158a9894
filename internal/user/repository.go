// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/resource"
)

const (
	uniqueEmailConstraint    = "users_email_key"
	uniqueUsernameConstraint = "users_username_key"
)

const accountColumns = `id, email, username, phone, picture, first_name, last_name,
		       password_hash, is_online, is_active, is_staff, role, verified,
		       token_version, date_joined, updated_at`

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SetOnline(ctx context.Context, id string, online bool) error
	SetActive(ctx context.Context, id string, active bool) (*Account, error)
	Count(ctx context.Context, q resource.ListQuery) (int, error)
	List(ctx context.Context, q resource.ListQuery) ([]*Account, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO users (id, email, username, phone, picture, first_name,
		                   last_name, password_hash, is_active, is_staff, role,
		                   verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING token_version, date_joined, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.ID,
		a.Email,
		a.Username,
		a.Phone,
		a.Picture,
		a.FirstName,
		a.LastName,
		a.PasswordHash,
		a.IsActive,
		a.IsStaff,
		a.Role,
		a.Verified,
	).Scan(&a.TokenVersion, &a.DateJoined, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapWriteError(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, "get user", `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, "get user by email",
		`SELECT `+accountColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
}

func (r *repository) getOne(ctx context.Context, op, query string, arg any) (*Account, error) {
	var a Account
	err := r.db.GetContext(ctx, &a, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

func (r *repository) Update(ctx context.Context, a *Account) error {
	query := `
		UPDATE users
		SET email = $2, username = $3, phone = $4, picture = $5,
		    first_name = $6, last_name = $7, is_staff = $8, role = $9,
		    verified = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.ID,
		a.Email,
		a.Username,
		a.Phone,
		a.Picture,
		a.FirstName,
		a.LastName,
		a.IsStaff,
		a.Role,
		a.Verified,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", mapWriteError(err))
	}

	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id string) error {
	query := `UPDATE users SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) SetOnline(ctx context.Context, id string, online bool) error {
	query := `UPDATE users SET is_online = $2 WHERE id = $1`
	return r.execOne(ctx, "set online", query, id, online)
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) (*Account, error) {
	query := `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND is_active <> $2
		RETURNING ` + accountColumns

	var a Account
	err := r.db.GetContext(ctx, &a, query, id, active)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set user active: %w", err)
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	if active {
		return nil, resource.ErrAlreadyActive
	}
	return nil, resource.ErrAlreadyInactive
}

func (r *repository) Count(ctx context.Context, q resource.ListQuery) (int, error) {
	f := resource.BuildFilter(Descriptor, q)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE `+f.Where, f.Args...); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return total, nil
}

func (r *repository) List(ctx context.Context, q resource.ListQuery) ([]*Account, error) {
	f := resource.BuildFilter(Descriptor, q)
	next := f.NextArg()

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		accountColumns, f.Where, resource.OrderClause(Descriptor, q), next, next+1)

	args := append(f.Args, q.Limit, q.Offset)

	var accounts []*Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return accounts, nil
}

func (r *repository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, NormalizeEmail(email), excludeID); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *repository) ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id::text <> $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username, excludeID); err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func mapWriteError(err error) error {
	name, ok := core.DuplicateConstraint(err)
	if !ok {
		return err
	}

	switch name {
	case uniqueEmailConstraint:
		return core.FieldError("email", MsgEmailExists)
	case uniqueUsernameConstraint:
		return core.FieldError("username", MsgUsernameExists)
	default:
		return core.ErrDuplicateKey
	}
}
