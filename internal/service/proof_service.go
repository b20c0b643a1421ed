package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/util"
)

const (
	shortCodeDigits      = 6
	shortCodeTTL         = 15 * time.Minute
	longTokenTTL         = 24 * time.Hour
	maxShortCodeAttempts = 5
)

// ProofService is the token ledger: it mints hashed one-time proofs and
// verifies and consumes them exactly once.
//
// Short codes and long tokens get different hashing on purpose. A 6-digit code
// spans only 10^6 values, so it is stored under a slow salted hash and capped
// at 5 guesses; a cheap hash there would be reversible by a table scan. A
// 256-bit token cannot be brute forced, so a fast deterministic digest is
// enough and doubles as the direct lookup key.
type ProofService struct {
	proofs ports.ProofRepository
	mailer ports.ProofMailer

	codeTTL  time.Duration
	tokenTTL time.Duration
	now      func() time.Time
}

func NewProofService(proofs ports.ProofRepository, mailer ports.ProofMailer) *ProofService {
	return &ProofService{
		proofs:   proofs,
		mailer:   mailer,
		codeTTL:  shortCodeTTL,
		tokenTTL: longTokenTTL,
		now:      time.Now,
	}
}

// Issue mints a proof for (identity, purpose) and hands the plaintext to the
// mail collaborator. The plaintext is never returned to the caller. When
// delivery fails the fresh proof is invalidated before the error propagates.
func (s *ProofService) Issue(ctx context.Context, identity string, purpose domain.ProofPurpose, kind domain.ProofKind) (time.Time, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return time.Time{}, &ValidationError{Field: "email", Detail: "is required"}
	}
	if !purpose.Valid() {
		return time.Time{}, ErrUnknownPurpose
	}

	var plaintext string
	var draft ports.ProofDraft
	switch kind {
	case domain.KindShortCode:
		code, err := util.GenerateNumericCode(shortCodeDigits)
		if err != nil {
			return time.Time{}, err
		}
		hash, salt, err := util.DeriveSecret(code)
		if err != nil {
			return time.Time{}, err
		}
		plaintext = code
		draft = ports.ProofDraft{
			Identity:  identity,
			Purpose:   purpose,
			Kind:      kind,
			ProofHash: hash,
			ProofSalt: salt,
			ExpiresAt: s.now().Add(s.codeTTL),
		}
	case domain.KindLongToken:
		token, err := util.GenerateToken()
		if err != nil {
			return time.Time{}, err
		}
		plaintext = token
		draft = ports.ProofDraft{
			Identity:  identity,
			Purpose:   purpose,
			Kind:      kind,
			ProofHash: util.DigestToken(token),
			ExpiresAt: s.now().Add(s.tokenTTL),
		}
	default:
		return time.Time{}, ErrUnknownKind
	}

	proof, err := s.proofs.Replace(ctx, draft)
	if err != nil {
		return time.Time{}, fmt.Errorf("store proof: %w", err)
	}

	variables := map[string]string{
		"expires_at": proof.ExpiresAt.Format(time.RFC3339),
	}
	if kind == domain.KindShortCode {
		variables["code"] = plaintext
	} else {
		variables["token"] = plaintext
	}
	if err := s.mailer.Send(ctx, identity, mailTemplate(purpose, kind), variables); err != nil {
		// An undeliverable proof must not stay redeemable.
		if markErr := s.proofs.MarkConsumed(ctx, proof.ID); markErr != nil {
			log.Printf("proof: invalidate undelivered proof %d: %v", proof.ID, markErr)
		}
		return time.Time{}, fmt.Errorf("send proof mail: %w", err)
	}
	return proof.ExpiresAt, nil
}

// VerifyShortCode checks a manually entered code under the pair's row lock.
// Missing, expired, consumed, attempt-exhausted and mismatched codes all
// surface as the same generic error; the real reason goes to the log only.
func (s *ProofService) VerifyShortCode(ctx context.Context, identity string, purpose domain.ProofPurpose, candidate string) (*domain.VerifiedIdentity, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" || candidate == "" {
		return nil, ErrInvalidOrExpiredProof
	}

	var verified *domain.VerifiedIdentity
	err := s.proofs.WithPairLock(ctx, identity, purpose, func(tx ports.ProofTx, p *domain.Proof) error {
		switch {
		case p == nil:
			return s.reject(identity, purpose, "no active proof")
		case p.Kind != domain.KindShortCode:
			return s.reject(identity, purpose, "proof kind mismatch")
		case p.AttemptCount >= maxShortCodeAttempts:
			return s.reject(identity, purpose, "attempt budget exhausted")
		case !s.now().Before(p.ExpiresAt):
			return s.reject(identity, purpose, "proof expired")
		case p.ConsumedAt != nil:
			return s.reject(identity, purpose, "proof already consumed")
		}
		if !util.VerifySecret(candidate, p.ProofSalt, p.ProofHash) {
			if err := tx.IncrementAttempts(ctx, p.ID); err != nil {
				return err
			}
			return s.reject(identity, purpose, "code mismatch")
		}
		consumed, err := tx.Consume(ctx, p.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return s.reject(identity, purpose, "lost consumption race")
		}
		verified = &domain.VerifiedIdentity{Identity: p.Identity, Purpose: purpose}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verified, nil
}

// VerifyLongToken resolves a token by its digest; the identity comes from the
// matched row. No attempt counting: a failed guess cannot be attributed to any
// row, and the space is too large for counting to matter.
func (s *ProofService) VerifyLongToken(ctx context.Context, purpose domain.ProofPurpose, candidate string) (*domain.VerifiedIdentity, error) {
	if candidate == "" {
		return nil, ErrInvalidOrExpiredProof
	}
	proof, err := s.proofs.FindActiveByHash(ctx, purpose, util.DigestToken(candidate), s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, s.reject("", purpose, "no proof for token digest")
		}
		return nil, err
	}
	if proof.Kind != domain.KindLongToken {
		return nil, s.reject(proof.Identity, purpose, "proof kind mismatch")
	}
	consumed, err := s.proofs.ConsumeByID(ctx, proof.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, s.reject(proof.Identity, purpose, "lost consumption race")
	}
	return &domain.VerifiedIdentity{Identity: proof.Identity, Purpose: purpose}, nil
}

// reject logs the concrete rejection reason and returns the generic error the
// caller is allowed to see.
func (s *ProofService) reject(identity string, purpose domain.ProofPurpose, reason string) error {
	if identity == "" {
		identity = "<unknown>"
	}
	log.Printf("proof: rejected %s verification for %s: %s", purpose, identity, reason)
	return ErrInvalidOrExpiredProof
}

// NormalizeIdentity lowercases and trims an identity so throttles and proof
// rows agree on the key.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func mailTemplate(purpose domain.ProofPurpose, kind domain.ProofKind) ports.MailTemplate {
	if purpose == domain.PurposeResetCredential {
		if kind == domain.KindLongToken {
			return ports.TemplateResetByLink
		}
		return ports.TemplateResetByCode
	}
	if kind == domain.KindLongToken {
		return ports.TemplateVerifyByLink
	}
	return ports.TemplateVerifyByCode
}
