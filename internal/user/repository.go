package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users. Lookups return ErrNotFound when nothing matches;
// writes return ErrAddressTaken, ErrEmailTaken or ErrUsernameTaken on a
// uniqueness conflict. Address lookups ignore hex case.
type Repository interface {
	Create(ctx context.Context, u User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByAddress(ctx context.Context, address string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmailVerifyToken(ctx context.Context, token string) (User, error)
	Update(ctx context.Context, id string, upd Update) (User, error)
}

const userColumns = `id, address, email, username, login_method, is_email_verified, email_verify_token, created_at, updated_at`

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, u User) error {
	userID, err := uuid.Parse(u.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, u.Address, u.Email, u.Username, u.LoginMethod, u.IsEmailVerified, u.EmailVerifyToken,
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return mapPgError(err)
}

// FindByID fetches a user by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, `WHERE id = $1`, userID)
}

// FindByAddress fetches a user by wallet address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, address string) (User, error) {
	return r.findOne(ctx, `WHERE lower(address) = lower($1)`, address)
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByUsername fetches a user by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `WHERE username = $1`, username)
}

// FindByEmailVerifyToken fetches the user holding a pending verification code.
func (r *PostgresRepository) FindByEmailVerifyToken(ctx context.Context, token string) (User, error) {
	return r.findOne(ctx, `WHERE email_verify_token = $1`, token)
}

// Update applies a partial update and returns the stored record.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd Update) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	if upd.empty() {
		return r.FindByID(ctx, id)
	}
	columns, args := updateAssignments(upd, time.Now().UTC())
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanPgUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return User{}, mapPgError(err)
	}
	return u, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (User, error) {
	u, err := scanPgUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if err != nil {
		return User{}, mapPgError(err)
	}
	return u, nil
}

func scanPgUser(row pgx.Row) (User, error) {
	var (
		id uuid.UUID
		u  User
	)
	if err := row.Scan(&id, &u.Address, &u.Email, &u.Username, &u.LoginMethod, &u.IsEmailVerified,
		&u.EmailVerifyToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.ID = id.String()
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if conflict := conflictFor(pgErr.ConstraintName); conflict != nil {
			return conflict
		}
	}
	return err
}

// conflictFor maps a unique index name (or driver message) to a domain error.
func conflictFor(name string) error {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "address"):
		return ErrAddressTaken
	case strings.Contains(name, "email_verify_token"):
		return nil
	case strings.Contains(name, "email"):
		return ErrEmailTaken
	case strings.Contains(name, "username"):
		return ErrUsernameTaken
	}
	return nil
}

// updateAssignments lists the columns touched by upd in a stable order with
// their values. updated_at is always last.
func updateAssignments(upd Update, now time.Time) ([]string, []any) {
	var (
		columns []string
		args    []any
	)
	add := func(col string, v any) {
		columns = append(columns, col)
		args = append(args, v)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.LoginMethod != nil {
		add("login_method", *upd.LoginMethod)
	}
	if upd.IsEmailVerified != nil {
		add("is_email_verified", *upd.IsEmailVerified)
	}
	if upd.ClearEmailVerifyToken {
		add("email_verify_token", nil)
	} else if upd.EmailVerifyToken != nil {
		add("email_verify_token", *upd.EmailVerifyToken)
	}
	add("updated_at", now)
	return columns, args
}
