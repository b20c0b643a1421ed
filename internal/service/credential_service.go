package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/util"
)

var ErrInvalidCredential = errors.New("invalid or expired credential")

// Credential is the signed session artifact handed to the rest of the system.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// CredentialService composes the token ledger and policy store results into
// final session credentials. It is deliberately thin.
type CredentialService struct {
	users    ports.UserRepository
	sessions ports.SessionRepository
	policy   *PolicyService
	tokens   *util.JWTManager
}

func NewCredentialService(users ports.UserRepository, sessions ports.SessionRepository, policy *PolicyService, tokens *util.JWTManager) *CredentialService {
	return &CredentialService{users: users, sessions: sessions, policy: policy, tokens: tokens}
}

// IssueForIdentity mints a session credential for a verified identity,
// creating the user row if this identity has never logged in before.
func (s *CredentialService) IssueForIdentity(ctx context.Context, email string, fullName *string) (*Credential, error) {
	user, err := s.users.UpsertByEmail(ctx, NormalizeIdentity(email), fullName)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email, user.EmailVerified)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}
	if _, err := s.sessions.CreateSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &Credential{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ConfirmEmail marks the identity's email as verified. The caller must hold a
// VerifiedIdentity for the verify_identity purpose.
func (s *CredentialService) ConfirmEmail(ctx context.Context, verified *domain.VerifiedIdentity) (*Credential, error) {
	if verified == nil || verified.Purpose != domain.PurposeVerifyIdentity {
		return nil, ErrInvalidOrExpiredProof
	}
	user, err := s.users.UpsertByEmail(ctx, verified.Identity, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if !user.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.EmailVerified = true
	}
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Email, true)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}
	if _, err := s.sessions.CreateSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &Credential{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ValidateNewPassword checks a candidate password against the current policy.
// Callers run this before spending a proof so a doomed reset never consumes
// the single-use code.
func (s *CredentialService) ValidateNewPassword(ctx context.Context, password string) error {
	policy, err := s.policy.Get(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	return CheckPassword(policy, password)
}

// CompletePasswordReset sets a new password for an identity verified via the
// reset_credential purpose. The new password is checked against the current
// policy first; the ValidationError carries the full requirements text so the
// caller can render it directly. All existing sessions are revoked.
func (s *CredentialService) CompletePasswordReset(ctx context.Context, verified *domain.VerifiedIdentity, newPassword string) error {
	if verified == nil || verified.Purpose != domain.PurposeResetCredential {
		return ErrInvalidOrExpiredProof
	}
	policy, err := s.policy.Get(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	if err := CheckPassword(policy, newPassword); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, verified.Identity)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidOrExpiredProof
		}
		return err
	}
	hash, salt, err := util.DeriveSecret(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, salt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.sessions.DeactivateAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token into its user, requiring both a valid
// signature and a still-active session row.
func (s *CredentialService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if _, err := s.sessions.FindActiveSession(ctx, token); err != nil {
		return nil, ErrInvalidCredential
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// Logout deactivates the session behind a token.
func (s *CredentialService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeactivateSession(ctx, token)
}
