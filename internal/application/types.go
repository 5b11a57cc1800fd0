package application

import "github.com/google/uuid"

type RegisterRequest struct {
	Username            string `json:"username" validate:"required,max=50"`
	Email               string `json:"email" validate:"required,email,max=254"`
	Password            string `json:"password" validate:"required"`
	PublicKey           string `json:"public_key" validate:"required"`
	EncryptedPrivateKey string `json:"encrypted_private_key" validate:"required"`
}

// RegisterResponse is identical for new and masked duplicate registrations.
type RegisterResponse struct {
	Message string `json:"message"`
}

type LoginRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	TOTPCode  string `json:"totp_code,omitempty"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type LoginResponse struct {
	AccessToken         string `json:"access_token"`
	RefreshToken        string `json:"refresh_token"`
	TokenType           string `json:"token_type"`
	ExpiresIn           int64  `json:"expires_in"`
	EncryptedPrivateKey string `json:"encrypted_private_key"`
	IsNewDevice         bool   `json:"is_new_device"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TOTPSetupResponse struct {
	QRCode          string `json:"qr_code"`
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type TOTPCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

type ConfirmPasswordResetRequest struct {
	Token                  string `json:"token" validate:"required"`
	NewPassword            string `json:"new_password" validate:"required"`
	NewPublicKey           string `json:"new_public_key" validate:"required"`
	NewEncryptedPrivateKey string `json:"new_encrypted_private_key" validate:"required"`
}

type SessionItem struct {
	SessionID string `json:"session_id"`
	Current   bool   `json:"current"`
}

// AccessIdentity is what an authenticated request knows about its caller.
type AccessIdentity struct {
	UserID    uuid.UUID
	SessionID string
	ExpiresAt int64
}
