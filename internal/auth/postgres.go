package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

var (
	_ IdentityStore   = (*PGIdentityStore)(nil)
	_ SessionStore    = (*PGSessionStore)(nil)
	_ PermissionStore = (*PGPermissionStore)(nil)
)

// PGIdentityStore reads accounts from the users table.
type PGIdentityStore struct {
	db *sql.DB
}

func NewPGIdentityStore(db *sql.DB) *PGIdentityStore {
	return &PGIdentityStore{db: db}
}

const identityColumns = `id, username, email, password_hash, role, status, assigned_desa, assigned_kelompok, created_by, created_at, updated_at`

func (s *PGIdentityStore) FindActiveByUsername(ctx context.Context, username string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where username=$1 and status=$2`,
		username, StatusActive,
	)
	return scanIdentity(row)
}

func (s *PGIdentityStore) FindActiveByID(ctx context.Context, id int64) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from users where id=$1 and status=$2`,
		id, StatusActive,
	)
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	var (
		ident            Identity
		email, createdBy sql.NullString
		desa, kelompok   []byte
	)
	err := row.Scan(&ident.ID, &ident.Username, &email, &ident.PasswordHash,
		&ident.Role, &ident.Status, &desa, &kelompok, &createdBy,
		&ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ident.Email = email.String
	ident.CreatedBy = createdBy.String
	// Area lists are stored as jsonb; null means no assignments.
	if len(desa) > 0 {
		_ = json.Unmarshal(desa, &ident.AssignedDesa)
	}
	if len(kelompok) > 0 {
		_ = json.Unmarshal(kelompok, &ident.AssignedKelompok)
	}
	return &ident, nil
}

// PGSessionStore persists login records in the user_sessions table.
type PGSessionStore struct {
	db *sql.DB
}

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Insert(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_sessions(session_id, user_id, device_type, device_info, login_time, last_activity, is_active)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.IdentityID, sess.DeviceType, sess.DeviceInfo,
		sess.LoginTime, sess.LastActivity, sess.Active,
	)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return ErrConflict
	}
	return err
}

func (s *PGSessionStore) TouchActiveByIdentity(ctx context.Context, identityID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update user_sessions set last_activity=$2 where user_id=$1 and is_active=true`,
		identityID, at,
	)
	return err
}

// PGPermissionStore reads grants from the role_permissions table.
type PGPermissionStore struct {
	db *sql.DB
}

func NewPGPermissionStore(db *sql.DB) *PGPermissionStore {
	return &PGPermissionStore{db: db}
}

func (s *PGPermissionStore) GrantsForRole(ctx context.Context, role string) ([]PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select role, menu_name, can_view, can_create, can_edit, can_delete
		 from role_permissions where role=$1 order by menu_name`,
		role,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []PermissionGrant
	for rows.Next() {
		var g PermissionGrant
		if err := rows.Scan(&g.Role, &g.Menu, &g.CanView, &g.CanCreate, &g.CanEdit, &g.CanDelete); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
