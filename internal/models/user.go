package models

import "time"

// Role gates write access to the catalog.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Provider is the authentication source of an account.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderTelegram Provider = "telegram"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        *string   `json:"email,omitempty" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Provider     Provider  `json:"provider" db:"provider"`
	ProviderID   *string   `json:"providerId,omitempty" db:"provider_id"`
	Role         Role      `json:"role" db:"role"`
	FirstName    string    `json:"firstName,omitempty" db:"first_name"`
	LastName     string    `json:"lastName,omitempty" db:"last_name"`
	PhotoURL     *string   `json:"photoUrl,omitempty" db:"photo_url"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty" db:"phone_number"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdatePhoneRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// SessionUser is the user block returned by every login transport.
type SessionUser struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Role     Role    `json:"role"`
	PhotoURL *string `json:"photoUrl,omitempty"`
	Token    string  `json:"token"`
}

type LoginResponse struct {
	Message string      `json:"message"`
	User    SessionUser `json:"user"`
}

// MiniAppLoginRequest carries the raw Mini-App initData string.
type MiniAppLoginRequest struct {
	InitData    string `json:"initData" binding:"required"`
	PhoneNumber string `json:"phone_number"`
}

// DeepLinkInit is returned when a bot login is started.
type DeepLinkInit struct {
	Token     string `json:"token"`
	DeepLink  string `json:"deepLink"`
	ExpiresIn int    `json:"expiresIn"`
}

// DeepLinkStatus is polled by the browser until the bot confirms the login.
type DeepLinkStatus struct {
	Completed bool         `json:"completed"`
	Message   string       `json:"message,omitempty"`
	User      *SessionUser `json:"user,omitempty"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}
