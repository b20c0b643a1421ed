package ports

import (
	"context"

	"github.com/hivecraft/identity-core/internal/domain"
)

type PolicyRepository interface {
	// Get returns the singleton policy row, creating the default row if none
	// exists yet. Concurrent first calls must all succeed and observe the same
	// row.
	Get(ctx context.Context) (*domain.Policy, error)
	// Update applies the non-nil fields of the patch and returns the updated
	// row.
	Update(ctx context.Context, patch domain.PolicyPatch) (*domain.Policy, error)
}
