package domain

import "time"

// ProofPurpose names what a successful verification authorizes.
type ProofPurpose string

const (
	PurposeVerifyIdentity  ProofPurpose = "verify_identity"
	PurposeResetCredential ProofPurpose = "reset_credential"
)

func (p ProofPurpose) Valid() bool {
	return p == PurposeVerifyIdentity || p == PurposeResetCredential
}

// ProofKind distinguishes the two proof shapes. Short codes are typed by a
// human and guarded by an attempt cap; long tokens arrive inside a link and
// are unguessable by size.
type ProofKind string

const (
	KindShortCode ProofKind = "short_code"
	KindLongToken ProofKind = "long_token"
)

func (k ProofKind) Valid() bool {
	return k == KindShortCode || k == KindLongToken
}

// Proof is one ledger row. Only the hash (and, for short codes, the salt) is
// stored; the plaintext exists solely in the outbound email.
type Proof struct {
	ID           int64        `db:"id" json:"id"`
	Identity     string       `db:"identity" json:"identity"`
	Purpose      ProofPurpose `db:"purpose" json:"purpose"`
	Kind         ProofKind    `db:"kind" json:"kind"`
	ProofHash    []byte       `db:"proof_hash" json:"-"`
	ProofSalt    []byte       `db:"proof_salt" json:"-"`
	ExpiresAt    time.Time    `db:"expires_at" json:"expires_at"`
	ConsumedAt   *time.Time   `db:"consumed_at" json:"consumed_at,omitempty"`
	AttemptCount int          `db:"attempt_count" json:"attempt_count"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// VerifiedIdentity is the result of a successful proof consumption. Holding
// one authorizes exactly the named purpose for the named identity.
type VerifiedIdentity struct {
	Identity string
	Purpose  ProofPurpose
}
