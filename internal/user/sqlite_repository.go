package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository on an embedded SQLite database.
// Timestamps are stored as unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an opened and migrated SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new user.
func (r *SQLiteRepository) Create(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Address, u.Email, u.Username, u.LoginMethod, u.IsEmailVerified, u.EmailVerifyToken,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	return mapSQLiteError(err)
}

// FindByID fetches a user by primary key.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, `WHERE id = ?`, id)
}

// FindByAddress fetches a user by wallet address.
func (r *SQLiteRepository) FindByAddress(ctx context.Context, address string) (User, error) {
	return r.findOne(ctx, `WHERE lower(address) = lower(?)`, address)
}

// FindByEmail fetches a user by email.
func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `WHERE email = ?`, email)
}

// FindByUsername fetches a user by username.
func (r *SQLiteRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `WHERE username = ?`, username)
}

// FindByEmailVerifyToken fetches the user holding a pending verification code.
func (r *SQLiteRepository) FindByEmailVerifyToken(ctx context.Context, token string) (User, error) {
	return r.findOne(ctx, `WHERE email_verify_token = ?`, token)
}

// Update applies a partial update and returns the stored record.
func (r *SQLiteRepository) Update(ctx context.Context, id string, upd Update) (User, error) {
	if upd.empty() {
		return r.FindByID(ctx, id)
	}
	columns, args := updateAssignments(upd, time.Now().UTC())
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = col + " = ?"
		if t, ok := args[i].(time.Time); ok {
			args[i] = toMillis(t)
		}
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ? RETURNING %s`, strings.Join(sets, ", "), userColumns)
	u, err := scanSQLiteUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return User{}, mapSQLiteError(err)
	}
	return u, nil
}

func (r *SQLiteRepository) findOne(ctx context.Context, where string, arg any) (User, error) {
	u, err := scanSQLiteUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if err != nil {
		return User{}, mapSQLiteError(err)
	}
	return u, nil
}

func scanSQLiteUser(row *sql.Row) (User, error) {
	var (
		u                  User
		address, email     sql.NullString
		username, token    sql.NullString
		createdAt, updated int64
	)
	if err := row.Scan(&u.ID, &address, &email, &username, &u.LoginMethod, &u.IsEmailVerified,
		&token, &createdAt, &updated); err != nil {
		return User{}, err
	}
	u.Address = nullable(address)
	u.Email = nullable(email)
	u.Username = nullable(username)
	u.EmailVerifyToken = nullable(token)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			// "UNIQUE constraint failed: users.email" or "... index 'users_address_lower_key'"
			if conflict := conflictFor(err.Error()); conflict != nil {
				return conflict
			}
		}
	}
	return err
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
