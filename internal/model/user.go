package model

import "time"

// User represents a platform account as stored in the `users` table.
// Each field corresponds to a column in the database. PasswordHash and
// RefreshToken are secrets and carry `json:"-"` so they never leave the
// service; handlers return the result of Public() instead.
//
// Fields:
//
//	ID               – primary key identifier of the user.
//	Mail             – unique mail address, alternate lookup key.
//	PasswordHash     – bcrypt hashed password.
//	Role             – users.role_id (see Role).
//	RefreshToken     – SHA‑256 hex of the active refresh token, empty when logged out.
//	RefreshExpiresAt – expiry of the active refresh token (nullable).
//	ReferralCode     – sponsorship code generated on creation.
type User struct {
	ID               uint64     `json:"id"`                  // users.id
	Mail             string     `json:"mail"`                // users.mail
	PasswordHash     string     `json:"-"`                   // users.password_hash
	Role             Role       `json:"roleId"`              // users.role_id
	Firstname        string     `json:"firstname"`           // users.firstname
	Lastname         string     `json:"lastname"`            // users.lastname
	Phone            string     `json:"phone"`               // users.phone
	Address          string     `json:"address"`             // users.address
	City             string     `json:"city"`                // users.city
	ZipCode          string     `json:"zipCode"`             // users.zip_code
	Thumbnail        string     `json:"thumbnail"`           // users.thumbnail
	SponsorID        *uint64    `json:"sponsorId,omitempty"` // users.sponsor_id (nullable)
	ReferralCode     string     `json:"referralCode"`        // users.referral_code
	RefreshToken     string     `json:"-"`                   // users.refresh_token_hash
	RefreshExpiresAt *time.Time `json:"-"`                   // users.refresh_expires_at
	CreatedAt        time.Time  `json:"createdAt"`           // users.created_at
	UpdatedAt        time.Time  `json:"updatedAt"`           // users.updated_at
}

// Public returns a copy of the user with every secret cleared.
func (u User) Public() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	u.RefreshExpiresAt = nil
	return u
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.Lastname == "" {
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}

// UserPatch carries the profile fields a PATCH /users/:id may change. Nil
// fields are left untouched. Mail, password and role are not patchable here.
type UserPatch struct {
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	ZipCode   *string `json:"zipCode"`
	Thumbnail *string `json:"thumbnail"`
}

// Apply copies every non-nil patch field onto u.
func (p UserPatch) Apply(u *User) {
	if p.Firstname != nil {
		u.Firstname = *p.Firstname
	}
	if p.Lastname != nil {
		u.Lastname = *p.Lastname
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.ZipCode != nil {
		u.ZipCode = *p.ZipCode
	}
	if p.Thumbnail != nil {
		u.Thumbnail = *p.Thumbnail
	}
}

// UserRecord is the internal wire form of a User with its secrets. It only
// travels on the trusted internal API and the credential RPC queue, where
// the remote auth service needs the password hash and refresh token hash.
type UserRecord struct {
	User
	PasswordHash     string     `json:"passwordHash"`
	RefreshToken     string     `json:"refreshTokenHash,omitempty"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty"`
}

func NewUserRecord(u User) UserRecord {
	return UserRecord{User: u, PasswordHash: u.PasswordHash, RefreshToken: u.RefreshToken, RefreshExpiresAt: u.RefreshExpiresAt}
}

// ToUser folds the secrets back into a User.
func (r UserRecord) ToUser() User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	u.RefreshToken = r.RefreshToken
	u.RefreshExpiresAt = r.RefreshExpiresAt
	return u
}
