package ports

import (
	"context"
	"time"

	"github.com/hivecraft/identity-core/internal/domain"
)

// ProofDraft carries the fields of a proof about to be written. Replacing an
// existing (identity, purpose) row resets attempt_count and consumed_at.
type ProofDraft struct {
	Identity  string
	Purpose   domain.ProofPurpose
	Kind      domain.ProofKind
	ProofHash []byte
	ProofSalt []byte
	ExpiresAt time.Time
}

// ProofTx exposes the mutations available while a (identity, purpose) row is
// held under a row lock.
type ProofTx interface {
	IncrementAttempts(ctx context.Context, id int64) error
	// Consume sets consumed_at only if it is still null. Returns false when a
	// concurrent verifier already consumed the proof.
	Consume(ctx context.Context, id int64) (bool, error)
}

type ProofRepository interface {
	// Replace upserts the proof for (identity, purpose), invalidating any
	// prior proof for the pair.
	Replace(ctx context.Context, draft ProofDraft) (*domain.Proof, error)
	// WithPairLock runs fn with the pair's row selected FOR UPDATE (nil when
	// no row exists). Mutations made through ProofTx are committed even when
	// fn returns an error, so failed-attempt counters survive rejection.
	WithPairLock(ctx context.Context, identity string, purpose domain.ProofPurpose, fn func(tx ProofTx, p *domain.Proof) error) error
	// FindActiveByHash looks a proof up directly by its stored hash. Only
	// long-token digests are queryable this way.
	FindActiveByHash(ctx context.Context, purpose domain.ProofPurpose, hash []byte, now time.Time) (*domain.Proof, error)
	// ConsumeByID is the unlocked variant of ProofTx.Consume.
	ConsumeByID(ctx context.Context, id int64) (bool, error)
	// MarkConsumed unconditionally invalidates a proof (used when delivery of
	// the plaintext failed).
	MarkConsumed(ctx context.Context, id int64) error
}
