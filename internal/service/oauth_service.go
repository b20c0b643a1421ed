package service

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hivecraft/identity-core/internal/repository/ports"
)

const defaultTicketTTL = time.Hour

// ticketClaims is the signed, stateless flow ticket that survives the
// provider redirect round-trip. Everything the callback needs is inside the
// token; no server-side session is involved, so the callback may land on any
// instance.
type ticketClaims struct {
	Provider       string `json:"provider"`
	RedirectOrigin string `json:"redirect_origin"`
	jwt.RegisteredClaims
}

// OAuthConfig carries deployment-level flow settings.
type OAuthConfig struct {
	// StateSecret signs flow tickets. Empty means the deployment is broken
	// and every flow is refused.
	StateSecret string
	// RedirectAllowlist holds the origins (scheme://host[:port]) login may
	// return to. An empty list fails closed.
	RedirectAllowlist []string
	// TicketTTL bounds ticket freshness. Defaults to one hour.
	TicketTTL time.Duration
	// SharedCredentialsAllowed is true only on managed multi-tenant
	// deployments where platform-shared provider credentials may be used.
	SharedCredentialsAllowed bool
}

// FlowOutcome is the result of a completed callback. Identity is nil when the
// provider reported a failure; RedirectOrigin is where the browser goes next.
type FlowOutcome struct {
	RedirectOrigin string
	Identity       *ports.ProviderIdentity
}

// OAuthService coordinates third-party login flows.
type OAuthService struct {
	cfg       OAuthConfig
	providers map[string]ports.IdentityProvider
	shared    map[string]bool
	now       func() time.Time
}

func NewOAuthService(cfg OAuthConfig) *OAuthService {
	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = defaultTicketTTL
	}
	return &OAuthService{
		cfg:       cfg,
		providers: make(map[string]ports.IdentityProvider),
		shared:    make(map[string]bool),
		now:       time.Now,
	}
}

// Register adds a provider adapter. sharedCredentials marks adapters
// configured with platform-shared client credentials rather than
// deployment-owned ones.
func (s *OAuthService) Register(p ports.IdentityProvider, sharedCredentials bool) {
	s.providers[p.Name()] = p
	s.shared[p.Name()] = sharedCredentials
}

// Begin validates the provider and redirect target, mints a flow ticket and
// returns the provider's authorization URL with the ticket as the opaque
// state parameter.
func (s *OAuthService) Begin(ctx context.Context, providerName, redirectTarget string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", &ValidationError{Field: "provider", Detail: "unsupported provider"}
	}
	if s.shared[providerName] && !s.cfg.SharedCredentialsAllowed {
		return "", &ConfigurationError{Reason: "provider " + providerName + " uses platform-shared credentials, which this deployment is not eligible for"}
	}
	if s.cfg.StateSecret == "" {
		return "", &ConfigurationError{Reason: "oauth state secret is not configured"}
	}
	// An absent allow-list is never "allow everything".
	if len(s.cfg.RedirectAllowlist) == 0 {
		return "", &ConfigurationError{Reason: "oauth redirect allow-list is not configured"}
	}
	origin, err := originOf(redirectTarget)
	if err != nil {
		return "", &ValidationError{Field: "redirect_uri", Detail: "must be an absolute http(s) URL"}
	}
	if !s.originAllowed(origin) {
		return "", &ValidationError{Field: "redirect_uri", Detail: "origin is not in the allow-list"}
	}

	ticket, err := s.mintTicket(providerName, origin)
	if err != nil {
		return "", err
	}
	return provider.AuthorizationURL(ticket)
}

// Complete verifies the returned ticket and exchanges the provider result for
// a confirmed identity. Every ticket problem collapses to ErrInvalidFlowState;
// the concrete reason is logged only. A provider-reported error yields an
// outcome without identity so the caller can redirect with an opaque
// indicator, never forwarding upstream error text.
func (s *OAuthService) Complete(ctx context.Context, providerName, state, code, providerErr string) (*FlowOutcome, error) {
	claims, err := s.parseTicket(state)
	if err != nil {
		log.Printf("oauth: ticket rejected for callback %s: %v", providerName, err)
		return nil, ErrInvalidFlowState
	}
	if claims.Provider != providerName {
		log.Printf("oauth: ticket for provider %s presented to %s callback", claims.Provider, providerName)
		return nil, ErrInvalidFlowState
	}
	outcome := &FlowOutcome{RedirectOrigin: claims.RedirectOrigin}

	if providerErr != "" {
		log.Printf("oauth: provider %s reported error: %s", providerName, providerErr)
		return outcome, nil
	}

	provider, ok := s.providers[providerName]
	if !ok {
		return nil, ErrInvalidFlowState
	}
	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		return outcome, &UpstreamProviderError{Provider: providerName, Err: err}
	}
	if identity.Email == "" {
		return outcome, &UpstreamProviderError{Provider: providerName, Err: errors.New("provider returned no email")}
	}
	outcome.Identity = identity
	return outcome, nil
}

func (s *OAuthService) mintTicket(provider, origin string) (string, error) {
	now := s.now()
	claims := ticketClaims{
		Provider:       provider,
		RedirectOrigin: origin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TicketTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.StateSecret))
}

func (s *OAuthService) parseTicket(state string) (*ticketClaims, error) {
	claims := &ticketClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.StateSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid ticket")
	}
	if claims.ExpiresAt == nil || claims.Provider == "" || claims.RedirectOrigin == "" {
		return nil, errors.New("incomplete ticket")
	}
	return claims, nil
}

func (s *OAuthService) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.RedirectAllowlist {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// originOf reduces a redirect target to its origin. Comparing origins instead
// of full URLs blocks open-redirect games with paths and query strings.
func originOf(target string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("not an absolute http(s) URL")
	}
	return u.Scheme + "://" + u.Host, nil
}
