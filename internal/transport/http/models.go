package http

import "time"

// ErrorResponse represents a generic error payload.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid or expired code"`
}

// ProofRequest asks for a new proof to be issued and mailed.
type ProofRequest struct {
	Email   string `json:"email" example:"user@example.com"`
	Purpose string `json:"purpose" example:"verify_identity"`
	Kind    string `json:"kind" example:"short_code"`
}

// ProofRequestResponse is returned on successful issuance. The plaintext is
// never part of the response.
type ProofRequestResponse struct {
	ExpiresAt time.Time `json:"expires_at" example:"2024-01-01T12:15:00Z"`
}

// ProofVerifyRequest presents a previously issued proof. Email is required
// for short codes only; long tokens resolve their identity from storage.
type ProofVerifyRequest struct {
	Email       string `json:"email,omitempty" example:"user@example.com"`
	Purpose     string `json:"purpose" example:"verify_identity"`
	Kind        string `json:"kind" example:"short_code"`
	Candidate   string `json:"candidate" example:"123456"`
	NewPassword string `json:"new_password,omitempty" example:"NewPass!45"`
}

// AuthUser is the sanitized user representation in auth responses.
type AuthUser struct {
	ID            string    `json:"id" example:"9fd13fd2-63c5-4f29-a210-4a1a8e285f74"`
	Email         string    `json:"email" example:"user@example.com"`
	FullName      *string   `json:"full_name,omitempty" example:"Sam User"`
	EmailVerified bool      `json:"email_verified" example:"true"`
	CreatedAt     time.Time `json:"created_at" example:"2024-01-01T12:00:00Z"`
}

// CredentialResponse is returned by endpoints that issue session credentials.
type CredentialResponse struct {
	Token     string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt string   `json:"expires_at" example:"2024-01-02T09:30:00Z"`
	User      AuthUser `json:"user"`
}

// SuccessResponse denotes a simple success flag.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}
