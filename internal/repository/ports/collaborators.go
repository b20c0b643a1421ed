package ports

import "context"

// MailTemplate names the outbound email templates this core triggers. The
// template bodies live with the mail collaborator, not here.
type MailTemplate string

const (
	TemplateVerifyByCode MailTemplate = "verify-by-code"
	TemplateVerifyByLink MailTemplate = "verify-by-link"
	TemplateResetByCode  MailTemplate = "reset-by-code"
	TemplateResetByLink  MailTemplate = "reset-by-link"
)

// ProofMailer delivers a proof plaintext to an identity. The plaintext never
// travels anywhere else.
type ProofMailer interface {
	Send(ctx context.Context, identity string, template MailTemplate, variables map[string]string) error
}

// AuditEntry is a single audit record. Recording is fire-and-forget; sinks
// must never block or fail the calling request.
type AuditEntry struct {
	Actor         string `json:"actor"`
	Action        string `json:"action"`
	Module        string `json:"module"`
	Details       string `json:"details,omitempty"`
	SourceAddress string `json:"source_address,omitempty"`
}

type AuditSink interface {
	Record(entry AuditEntry)
}

// BroadcastBus is a best-effort fan-out to connected clients. Delivery
// failures are swallowed.
type BroadcastBus interface {
	Notify(room, eventKind string, payload any)
}

// ProviderIdentity is the confirmed identity returned by a third-party
// provider after a successful exchange.
type ProviderIdentity struct {
	ProviderUserID string
	Email          string
	Name           string
}

// IdentityProvider adapts one third-party OAuth provider.
type IdentityProvider interface {
	Name() string
	// AuthorizationURL embeds the opaque state (the signed flow ticket) and
	// returns the provider's authorization endpoint URL.
	AuthorizationURL(state string) (string, error)
	// Exchange trades the provider callback code for a confirmed identity.
	Exchange(ctx context.Context, code string) (*ProviderIdentity, error)
}
