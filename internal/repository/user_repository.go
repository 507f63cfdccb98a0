package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/grp-2-projet-elective/cesieats-back/internal/database"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

const userColumns = `id, mail, password_hash, role_id, firstname, lastname, phone, address,
	city, zip_code, thumbnail, sponsor_id, referral_code, refresh_token_hash,
	refresh_expires_at, created_at, updated_at`

// UserRepo is the MySQL side of the credential store. Every mutation is a
// single-row update keyed by id or mail.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeMail lower-cases and trims a mail so lookups are case-insensitive.
func NormalizeMail(mail string) string {
	return strings.ToLower(strings.TrimSpace(mail))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		sponsorID sql.NullInt64
		refresh   sql.NullString
		refreshAt sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Mail, &u.PasswordHash, &u.Role, &u.Firstname, &u.Lastname, &u.Phone,
		&u.Address, &u.City, &u.ZipCode, &u.Thumbnail, &sponsorID, &u.ReferralCode, &refresh,
		&refreshAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if sponsorID.Valid {
		id := uint64(sponsorID.Int64)
		u.SponsorID = &id
	}
	u.RefreshToken = refresh.String
	if refreshAt.Valid {
		t := refreshAt.Time
		u.RefreshExpiresAt = &t
	}
	return u, nil
}

// Create inserts u (PasswordHash must already be set) and returns the
// stored row.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	u.Mail = NormalizeMail(u.Mail)
	if u.Role == 0 {
		u.Role = model.RoleCustomer
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (mail, password_hash, role_id, firstname, lastname, phone, address,
			city, zip_code, thumbnail, sponsor_id, referral_code)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Mail, u.PasswordHash, u.Role, u.Firstname, u.Lastname, u.Phone, u.Address,
		u.City, u.ZipCode, u.Thumbnail, u.SponsorID, u.ReferralCode)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return model.User{}, ErrMailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByMail fetches a user by normalized mail.
func (r *UserRepo) GetByMail(ctx context.Context, mail string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE mail=? LIMIT 1", NormalizeMail(mail))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update applies a profile patch to the user with the given id.
func (r *UserRepo) Update(ctx context.Context, id uint64, p model.UserPatch) (model.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	p.Apply(&u)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET firstname=?, lastname=?, phone=?, address=?, city=?, zip_code=?, thumbnail=?
		 WHERE id=?`,
		u.Firstname, u.Lastname, u.Phone, u.Address, u.City, u.ZipCode, u.Thumbnail, id)
	if err != nil {
		return model.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the user with the given id.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MailExists reports whether a user already uses mail.
func (r *UserRepo) MailExists(ctx context.Context, mail string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE mail=? LIMIT 1", NormalizeMail(mail)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// HasRole reports whether the user identified by mail has role. An
// unknown mail is not an error: it simply has no role.
func (r *UserRepo) HasRole(ctx context.Context, mail string, role model.Role) (bool, error) {
	var roleID model.Role
	err := r.DB.QueryRowContext(ctx, "SELECT role_id FROM users WHERE mail=? LIMIT 1", NormalizeMail(mail)).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return roleID == role, nil
}
