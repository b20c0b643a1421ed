package domain

import "time"

// PasswordMinLength is clamped to this range regardless of what an operator
// submits.
const (
	PasswordMinLengthFloor   = 4
	PasswordMinLengthCeiling = 128
)

// Policy is the deployment-wide authentication policy. Exactly one row exists;
// the table's singleton column enforces that at the database level.
type Policy struct {
	RequireEmailVerification bool      `db:"require_email_verification" json:"require_email_verification"`
	PasswordMinLength        int       `db:"password_min_length" json:"password_min_length"`
	RequireNumber            bool      `db:"require_number" json:"require_number"`
	RequireLowercase         bool      `db:"require_lowercase" json:"require_lowercase"`
	RequireUppercase         bool      `db:"require_uppercase" json:"require_uppercase"`
	RequireSpecialChar       bool      `db:"require_special_char" json:"require_special_char"`
	VerifyRedirectTarget     *string   `db:"verify_redirect_target" json:"verify_redirect_target,omitempty"`
	ResetRedirectTarget      *string   `db:"reset_redirect_target" json:"reset_redirect_target,omitempty"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// PolicyPatch carries a partial policy update. Nil fields are left untouched.
type PolicyPatch struct {
	RequireEmailVerification *bool   `json:"require_email_verification"`
	PasswordMinLength        *int    `json:"password_min_length"`
	RequireNumber            *bool   `json:"require_number"`
	RequireLowercase         *bool   `json:"require_lowercase"`
	RequireUppercase         *bool   `json:"require_uppercase"`
	RequireSpecialChar       *bool   `json:"require_special_char"`
	VerifyRedirectTarget     *string `json:"verify_redirect_target"`
	ResetRedirectTarget      *string `json:"reset_redirect_target"`
}
