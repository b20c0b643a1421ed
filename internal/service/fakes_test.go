package service

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

// memoryProofRepository mirrors the postgres ledger semantics: one row per
// (identity, purpose), attempt increments that survive rejection, and
// conditional consumption.
type memoryProofRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*domain.Proof
}

func newMemoryProofRepository() *memoryProofRepository {
	return &memoryProofRepository{rows: make(map[string]*domain.Proof)}
}

func proofKey(identity string, purpose domain.ProofPurpose) string {
	return identity + "|" + string(purpose)
}

func (r *memoryProofRepository) Replace(ctx context.Context, draft ports.ProofDraft) (*domain.Proof, error) {
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
	r.rows[proofKey(draft.Identity, draft.Purpose)] = proof
	copied := *proof
	return &copied, nil
}

func (r *memoryProofRepository) WithPairLock(ctx context.Context, identity string, purpose domain.ProofPurpose, fn func(tx ports.ProofTx, p *domain.Proof) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var view *domain.Proof
	if row, ok := r.rows[proofKey(identity, purpose)]; ok {
		copied := *row
		view = &copied
	}
	return fn(&memoryProofTx{repo: r}, view)
}

func (r *memoryProofRepository) FindActiveByHash(ctx context.Context, purpose domain.ProofPurpose, hash []byte, now time.Time) (*domain.Proof, error) {
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

func (r *memoryProofRepository) ConsumeByID(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumeLocked(id), nil
}

func (r *memoryProofRepository) MarkConsumed(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row := r.findLocked(id); row != nil {
		now := time.Now()
		row.ConsumedAt = &now
	}
	return nil
}

func (r *memoryProofRepository) findLocked(id int64) *domain.Proof {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *memoryProofRepository) consumeLocked(id int64) bool {
	row := r.findLocked(id)
	if row == nil || row.ConsumedAt != nil {
		return false
	}
	now := time.Now()
	row.ConsumedAt = &now
	return true
}

func (r *memoryProofRepository) stored(identity string, purpose domain.ProofPurpose) *domain.Proof {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[proofKey(identity, purpose)]
	if !ok {
		return nil
	}
	copied := *row
	return &copied
}

// memoryProofTx runs with the repository mutex already held by WithPairLock.
type memoryProofTx struct {
	repo *memoryProofRepository
}

func (t *memoryProofTx) IncrementAttempts(ctx context.Context, id int64) error {
	if row := t.repo.findLocked(id); row != nil {
		row.AttemptCount++
	}
	return nil
}

func (t *memoryProofTx) Consume(ctx context.Context, id int64) (bool, error) {
	return t.repo.consumeLocked(id), nil
}

type sentMail struct {
	identity  string
	template  ports.MailTemplate
	variables map[string]string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) Send(ctx context.Context, identity string, template ports.MailTemplate, variables map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{identity: identity, template: template, variables: variables})
	return nil
}

func (m *captureMailer) last() *sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}
	return &m.sent[len(m.sent)-1]
}

type memoryPolicyRepository struct {
	mu     sync.Mutex
	policy *domain.Policy
}

func (r *memoryPolicyRepository) Get(ctx context.Context) (*domain.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.policy == nil {
		r.policy = &domain.Policy{PasswordMinLength: 8, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	}
	copied := *r.policy
	return &copied, nil
}

func (r *memoryPolicyRepository) Update(ctx context.Context, patch domain.PolicyPatch) (*domain.Policy, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if patch.RequireEmailVerification != nil {
		r.policy.RequireEmailVerification = *patch.RequireEmailVerification
	}
	if patch.PasswordMinLength != nil {
		r.policy.PasswordMinLength = *patch.PasswordMinLength
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
	if patch.VerifyRedirectTarget != nil {
		r.policy.VerifyRedirectTarget = patch.VerifyRedirectTarget
	}
	if patch.ResetRedirectTarget != nil {
		r.policy.ResetRedirectTarget = patch.ResetRedirectTarget
	}
	r.policy.UpdatedAt = time.Now()
	copied := *r.policy
	return &copied, nil
}

type busEvent struct {
	room string
	kind string
}

type captureBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *captureBus) Notify(room, eventKind string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{room: room, kind: eventKind})
}

type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepository) UpsertByEmail(ctx context.Context, email string, fullName *string) (*domain.User, error) {
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

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
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

func (r *memoryUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, passwordSalt []byte) error {
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

func (r *memoryUserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
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

type memorySessionRepository struct {
	mu       sync.Mutex
	nextID   int64
	sessions []*domain.Session
}

func (r *memorySessionRepository) CreateSession(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	session := &domain.Session{
		ID:        r.nextID,
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	r.sessions = append(r.sessions, session)
	copied := *session
	return &copied, nil
}

func (r *memorySessionRepository) DeactivateSession(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.Token == token {
			session.IsActive = false
		}
	}
	return nil
}

func (r *memorySessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.UserID == userID {
			session.IsActive = false
		}
	}
	return nil
}

func (r *memorySessionRepository) FindActiveSession(ctx context.Context, token string) (*domain.Session, error) {
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

func (r *memorySessionRepository) activeCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			count++
		}
	}
	return count
}

// stubProvider is a scripted IdentityProvider adapter.
type stubProvider struct {
	name      string
	identity  *ports.ProviderIdentity
	exchange  error
	lastState string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthorizationURL(state string) (string, error) {
	p.lastState = state
	return "https://provider.example/authorize?state=" + state, nil
}

func (p *stubProvider) Exchange(ctx context.Context, code string) (*ports.ProviderIdentity, error) {
	if p.exchange != nil {
		return nil, p.exchange
	}
	if p.identity == nil {
		return nil, errors.New("no scripted identity")
	}
	copied := *p.identity
	return &copied, nil
}
