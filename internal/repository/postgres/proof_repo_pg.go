package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
)

type ProofRepository struct {
	db *sqlx.DB
}

func NewProofRepo(db *sqlx.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

const proofColumns = `id, identity, purpose, kind, proof_hash, proof_salt, expires_at, consumed_at, attempt_count, created_at`

func (r *ProofRepository) Replace(ctx context.Context, draft ports.ProofDraft) (*domain.Proof, error) {
	const query = `
        INSERT INTO identity_proof (identity, purpose, kind, proof_hash, proof_salt, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (identity, purpose) DO UPDATE
        SET kind = EXCLUDED.kind,
            proof_hash = EXCLUDED.proof_hash,
            proof_salt = EXCLUDED.proof_salt,
            expires_at = EXCLUDED.expires_at,
            consumed_at = NULL,
            attempt_count = 0,
            created_at = NOW()
        RETURNING ` + proofColumns
	row := r.db.QueryRowxContext(ctx, query,
		draft.Identity, draft.Purpose, draft.Kind, draft.ProofHash, draft.ProofSalt, draft.ExpiresAt)
	var proof domain.Proof
	if err := row.StructScan(&proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// WithPairLock serializes verification attempts for a (identity, purpose)
// pair via SELECT ... FOR UPDATE. The transaction commits even when fn fails,
// so attempt-counter increments are not lost on rejection.
func (r *ProofRepository) WithPairLock(ctx context.Context, identity string, purpose domain.ProofPurpose, fn func(tx ports.ProofTx, p *domain.Proof) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
        SELECT ` + proofColumns + `
        FROM identity_proof
        WHERE identity = $1 AND purpose = $2
        FOR UPDATE
    `
	var locked *domain.Proof
	var proof domain.Proof
	err = tx.GetContext(ctx, &proof, query, identity, purpose)
	switch {
	case err == nil:
		locked = &proof
	case errors.Is(err, sql.ErrNoRows):
		locked = nil
	default:
		return err
	}

	fnErr := fn(&proofTx{tx: tx}, locked)
	if err := tx.Commit(); err != nil {
		return err
	}
	return fnErr
}

func (r *ProofRepository) FindActiveByHash(ctx context.Context, purpose domain.ProofPurpose, hash []byte, now time.Time) (*domain.Proof, error) {
	const query = `
        SELECT ` + proofColumns + `
        FROM identity_proof
        WHERE proof_hash = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3
    `
	var proof domain.Proof
	if err := r.db.GetContext(ctx, &proof, query, hash, purpose, now); err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *ProofRepository) ConsumeByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, consumeQuery, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ProofRepository) MarkConsumed(ctx context.Context, id int64) error {
	const query = `UPDATE identity_proof SET consumed_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

const consumeQuery = `
    UPDATE identity_proof
    SET consumed_at = NOW()
    WHERE id = $1 AND consumed_at IS NULL
`

type proofTx struct {
	tx *sqlx.Tx
}

func (t *proofTx) IncrementAttempts(ctx context.Context, id int64) error {
	const query = `UPDATE identity_proof SET attempt_count = attempt_count + 1 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, query, id)
	return err
}

func (t *proofTx) Consume(ctx context.Context, id int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, consumeQuery, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
