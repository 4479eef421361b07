package domain

import "time"

// PrincipalKind identifies which account table a principal came from. The
// value doubles as the role claim in access tokens.
type PrincipalKind string

const (
	PrincipalAdmin  PrincipalKind = "admin"
	PrincipalVendor PrincipalKind = "vendor"
)

// Principal is an authenticated account. Login resolves the principal once
// and then checks verification and password the same way for every kind.
type Principal interface {
	PrincipalID() string
	Kind() PrincipalKind
	PasswordHash() string
	IsVerified() bool
}

// Admin is a platform operator account.
type Admin struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Hash      string    `json:"-"`
	Verified  bool      `json:"is_verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Admin) PrincipalID() string  { return a.ID }
func (a *Admin) Kind() PrincipalKind  { return PrincipalAdmin }
func (a *Admin) PasswordHash() string { return a.Hash }
func (a *Admin) IsVerified() bool     { return a.Verified }

// Vendor is a seller account. Vendors are created on first successful phone
// verification and own the products they create.
type Vendor struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	BusinessType    string    `json:"business_type"`
	Email           *string   `json:"email,omitempty"`
	Phone           string    `json:"phone"`
	Hash            string    `json:"-"`
	IsEmailVerified bool      `json:"is_email_verified"`
	Verified        bool      `json:"is_verified"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (v *Vendor) PrincipalID() string  { return v.ID }
func (v *Vendor) Kind() PrincipalKind  { return PrincipalVendor }
func (v *Vendor) PasswordHash() string { return v.Hash }
func (v *Vendor) IsVerified() bool     { return v.Verified }
