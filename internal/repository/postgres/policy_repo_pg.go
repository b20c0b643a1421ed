package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/hivecraft/identity-core/internal/domain"
)

// PolicyRepository manages the auth_policy singleton. The table carries a
// `singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton)` column so the
// database itself refuses a second row.
type PolicyRepository struct {
	db *sqlx.DB
}

func NewPolicyRepo(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `require_email_verification, password_min_length, require_number, require_lowercase, require_uppercase, require_special_char, verify_redirect_target, reset_redirect_target, created_at, updated_at`

func (r *PolicyRepository) Get(ctx context.Context) (*domain.Policy, error) {
	policy, err := r.fetch(ctx)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Conditional insert: the loser of a concurrent first-creation race hits
	// the conflict, inserts nothing, and reads back the winner's row.
	const insert = `
        INSERT INTO auth_policy (singleton)
        VALUES (TRUE)
        ON CONFLICT (singleton) DO NOTHING
    `
	if _, err := r.db.ExecContext(ctx, insert); err != nil {
		return nil, err
	}
	return r.fetch(ctx)
}

func (r *PolicyRepository) Update(ctx context.Context, patch domain.PolicyPatch) (*domain.Policy, error) {
	const query = `
        UPDATE auth_policy
        SET require_email_verification = COALESCE($1, require_email_verification),
            password_min_length = COALESCE($2, password_min_length),
            require_number = COALESCE($3, require_number),
            require_lowercase = COALESCE($4, require_lowercase),
            require_uppercase = COALESCE($5, require_uppercase),
            require_special_char = COALESCE($6, require_special_char),
            verify_redirect_target = COALESCE($7, verify_redirect_target),
            reset_redirect_target = COALESCE($8, reset_redirect_target),
            updated_at = NOW()
        WHERE singleton
        RETURNING ` + policyColumns
	row := r.db.QueryRowxContext(ctx, query,
		patch.RequireEmailVerification,
		patch.PasswordMinLength,
		patch.RequireNumber,
		patch.RequireLowercase,
		patch.RequireUppercase,
		patch.RequireSpecialChar,
		patch.VerifyRedirectTarget,
		patch.ResetRedirectTarget,
	)
	var policy domain.Policy
	if err := row.StructScan(&policy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No row yet: create the default, then retry once.
			if _, getErr := r.Get(ctx); getErr != nil {
				return nil, getErr
			}
			return r.Update(ctx, patch)
		}
		return nil, err
	}
	return &policy, nil
}

func (r *PolicyRepository) fetch(ctx context.Context) (*domain.Policy, error) {
	const query = `SELECT ` + policyColumns + ` FROM auth_policy WHERE singleton`
	var policy domain.Policy
	if err := r.db.GetContext(ctx, &policy, query); err != nil {
		return nil, err
	}
	return &policy, nil
}
