package http

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
)

// fakeProofRepository reproduces the ledger's semantics in memory: one row per
// (identity, purpose), attempt increments that stick, conditional consumption.
type fakeProofRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*domain.Proof
}

func newFakeProofRepository() *fakeProofRepository {
	return &fakeProofRepository{rows: make(map[string]*domain.Proof)}
}

func (r *fakeProofRepository) key(identity string, purpose domain.ProofPurpose) string {
	return identity + "|" + string(purpose)
}

func (r *fakeProofRepository) Replace(ctx context.Context, draft ports.ProofDraft) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	proof := &domain.Proof{
		ID:        r.nextID,
		Identity:  draft.Identity,
		Purpose:   draft.Purpose,
		Kind:      draft.Kind,
		ProofHash: draft.ProofHash,
		ProofSalt: draft.ProofSalt,
		ExpiresAt: draft.ExpiresAt,
		CreatedAt: time.Now(),
	}
	r.rows[r.key(draft.Identity, draft.Purpose)] = proof
	copied := *proof
	return &copied, nil
}

func (r *fakeProofRepository) WithPairLock(ctx context.Context, identity string, purpose domain.ProofPurpose, fn func(tx ports.ProofTx, p *domain.Proof) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var view *domain.Proof
	if row, ok := r.rows[r.key(identity, purpose)]; ok {
		copied := *row
		view = &copied
	}
	return fn(&fakeProofTx{repo: r}, view)
}

func (r *fakeProofRepository) FindActiveByHash(ctx context.Context, purpose domain.ProofPurpose, hash []byte, now time.Time) (*domain.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.Purpose == purpose && bytes.Equal(row.ProofHash, hash) && row.ConsumedAt == nil && row.ExpiresAt.After(now) {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeProofRepository) ConsumeByID(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumeLocked(id), nil
}

func (r *fakeProofRepository) MarkConsumed(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumeLocked(id)
	return nil
}

func (r *fakeProofRepository) findLocked(id int64) *domain.Proof {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeProofRepository) consumeLocked(id int64) bool {
	row := r.findLocked(id)
	if row == nil || row.ConsumedAt != nil {
		return false
	}
	now := time.Now()
	row.ConsumedAt = &now
	return true
}

type fakeProofTx struct {
	repo *fakeProofRepository
}

func (t *fakeProofTx) IncrementAttempts(ctx context.Context, id int64) error {
	if row := t.repo.findLocked(id); row != nil {
		row.AttemptCount++
	}
	return nil
}

func (t *fakeProofTx) Consume(ctx context.Context, id int64) (bool, error) {
	return t.repo.consumeLocked(id), nil
}

type fakeMailer struct {
	mu        sync.Mutex
	lastVars  map[string]string
	templates []ports.MailTemplate
}

func (m *fakeMailer) Send(ctx context.Context, identity string, template ports.MailTemplate, variables map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastVars = variables
	m.templates = append(m.templates, template)
	return nil
}

func (m *fakeMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastVars == nil {
		return ""
	}
	return m.lastVars["code"]
}

type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepository) UpsertByEmail(ctx context.Context, email string, fullName *string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		user = &domain.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
		r.users[email] = user
	}
	if fullName != nil {
		user.FullName = fullName
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, passwordSalt []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			user.PasswordSalt = passwordSalt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeUserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.ID == id {
			user.EmailVerified = true
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeSessionRepository struct {
	mu       sync.Mutex
	nextID   int64
	sessions []*domain.Session
}

func (r *fakeSessionRepository) CreateSession(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	session := &domain.Session{ID: r.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt, IsActive: true, CreatedAt: time.Now()}
	r.sessions = append(r.sessions, session)
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepository) DeactivateSession(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.Token == token {
			session.IsActive = false
		}
	}
	return nil
}

func (r *fakeSessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

func (r *fakeSessionRepository) FindActiveSession(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.Token == token && session.IsActive && session.ExpiresAt.After(time.Now()) {
			copied := *session
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakePolicyRepository struct {
	mu     sync.Mutex
	policy *domain.Policy
}

func (r *fakePolicyRepository) Get(ctx context.Context) (*domain.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.policy == nil {
		r.policy = &domain.Policy{PasswordMinLength: 8}
	}
	copied := *r.policy
	return &copied, nil
}

func (r *fakePolicyRepository) Update(ctx context.Context, patch domain.PolicyPatch) (*domain.Policy, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if patch.PasswordMinLength != nil {
		r.policy.PasswordMinLength = *patch.PasswordMinLength
	}
	if patch.RequireEmailVerification != nil {
		r.policy.RequireEmailVerification = *patch.RequireEmailVerification
	}
	if patch.RequireNumber != nil {
		r.policy.RequireNumber = *patch.RequireNumber
	}
	if patch.RequireLowercase != nil {
		r.policy.RequireLowercase = *patch.RequireLowercase
	}
	if patch.RequireUppercase != nil {
		r.policy.RequireUppercase = *patch.RequireUppercase
	}
	if patch.RequireSpecialChar != nil {
		r.policy.RequireSpecialChar = *patch.RequireSpecialChar
	}
	r.policy.UpdatedAt = time.Now()
	copied := *r.policy
	return &copied, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []ports.AuditEntry
}

func (a *recordingAudit) Record(entry ports.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, entry.Action)
	}
	return out
}

// fakeIdentityProvider is a scripted OAuth provider adapter.
type fakeIdentityProvider struct {
	name      string
	identity  *ports.ProviderIdentity
	exchange  error
	lastState string
}

func (p *fakeIdentityProvider) Name() string { return p.name }

func (p *fakeIdentityProvider) AuthorizationURL(state string) (string, error) {
	p.lastState = state
	return "https://provider.example/authorize?state=" + state, nil
}

func (p *fakeIdentityProvider) Exchange(ctx context.Context, code string) (*ports.ProviderIdentity, error) {
	if p.exchange != nil {
		return nil, p.exchange
	}
	if p.identity == nil {
		return nil, errors.New("no scripted identity")
	}
	copied := *p.identity
	return &copied, nil
}
