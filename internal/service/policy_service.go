package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
)

const policyRoom = "config"

// PolicyService fronts the singleton password/verification policy.
type PolicyService struct {
	policies ports.PolicyRepository
	bus      ports.BroadcastBus
}

func NewPolicyService(policies ports.PolicyRepository, bus ports.BroadcastBus) *PolicyService {
	return &PolicyService{policies: policies, bus: bus}
}

// Get returns the current policy, creating the default row on first call.
// Concurrent first calls are race-safe: the repository's conditional insert
// guarantees both callers observe the same row.
func (s *PolicyService) Get(ctx context.Context) (*domain.Policy, error) {
	return s.policies.Get(ctx)
}

// Update applies the supplied fields only. PasswordMinLength outside [4,128]
// fails validation before anything is persisted.
func (s *PolicyService) Update(ctx context.Context, patch domain.PolicyPatch) (*domain.Policy, error) {
	if patch.PasswordMinLength != nil {
		n := *patch.PasswordMinLength
		if n < domain.PasswordMinLengthFloor || n > domain.PasswordMinLengthCeiling {
			return nil, &ValidationError{
				Field: "password_min_length",
				Detail: fmt.Sprintf("must be between %d and %d",
					domain.PasswordMinLengthFloor, domain.PasswordMinLengthCeiling),
			}
		}
	}
	if err := checkRedirectTarget("verify_redirect_target", patch.VerifyRedirectTarget); err != nil {
		return nil, err
	}
	if err := checkRedirectTarget("reset_redirect_target", patch.ResetRedirectTarget); err != nil {
		return nil, err
	}
	policy, err := s.policies.Update(ctx, patch)
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.Notify(policyRoom, "policy.updated", policy)
	}
	return policy, nil
}

// checkRedirectTarget accepts only absolute http(s) URLs. An empty string is
// allowed and clears the target.
func checkRedirectTarget(field string, target *string) error {
	if target == nil || *target == "" {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(*target))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Detail: "must be an absolute http(s) URL"}
	}
	return nil
}

// DescribeRequirements renders the enabled password rules as a human-readable
// list, e.g. "at least 8 characters, a number, an uppercase letter".
func DescribeRequirements(p *domain.Policy) string {
	parts := []string{fmt.Sprintf("at least %d characters", p.PasswordMinLength)}
	if p.RequireNumber {
		parts = append(parts, "a number")
	}
	if p.RequireLowercase {
		parts = append(parts, "a lowercase letter")
	}
	if p.RequireUppercase {
		parts = append(parts, "an uppercase letter")
	}
	if p.RequireSpecialChar {
		parts = append(parts, "a special character")
	}
	return strings.Join(parts, ", ")
}

// CheckPassword enforces the enabled rules. The returned ValidationError
// carries the full requirements text so callers can render it directly.
func CheckPassword(p *domain.Policy, password string) error {
	var hasNumber, hasLower, hasUpper, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasNumber = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	ok := len(password) >= p.PasswordMinLength &&
		(!p.RequireNumber || hasNumber) &&
		(!p.RequireLowercase || hasLower) &&
		(!p.RequireUppercase || hasUpper) &&
		(!p.RequireSpecialChar || hasSpecial)
	if !ok {
		return &ValidationError{
			Field:  "password",
			Detail: "password must contain " + DescribeRequirements(p),
		}
	}
	return nil
}
