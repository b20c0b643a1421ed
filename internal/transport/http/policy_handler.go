package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/service"
	"github.com/hivecraft/identity-core/internal/util"
)

type PolicyHandler struct {
	policy *service.PolicyService
	audit  ports.AuditSink
}

func NewPolicyHandler(policy *service.PolicyService, audit ports.AuditSink) *PolicyHandler {
	return &PolicyHandler{policy: policy, audit: audit}
}

func RegisterPolicy(e *echo.Echo, h *PolicyHandler, credentials *service.CredentialService) {
	group := e.Group("/v1/policy", RequireAuth(credentials))
	group.GET("", h.GetPolicy)
	group.PATCH("", h.UpdatePolicy)
}

// GetPolicy godoc
//
//	@Summary	Get the global password and verification policy
//	@Tags		policy
//	@Produce	json
//	@Success	200	{object}	domain.Policy
//	@Security	BearerAuth
//	@Router		/v1/policy [get]
func (h *PolicyHandler) GetPolicy(c echo.Context) error {
	policy, err := h.policy.Get(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, policy)
}

// UpdatePolicy godoc
//
//	@Summary	Partially update the global policy
//	@Tags		policy
//	@Accept		json
//	@Produce	json
//	@Param		patch	body		domain.PolicyPatch	true	"fields to change"
//	@Success	200		{object}	domain.Policy
//	@Failure	400		{object}	ErrorResponse
//	@Security	BearerAuth
//	@Router		/v1/policy [patch]
func (h *PolicyHandler) UpdatePolicy(c echo.Context) error {
	var patch domain.PolicyPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("malformed request body"))
	}
	policy, err := h.policy.Update(c.Request().Context(), patch)
	if err != nil {
		return writeServiceError(c, err)
	}
	if h.audit != nil {
		actor := ""
		if user, ok := CurrentUser(c); ok {
			actor = user.Email
		}
		h.audit.Record(ports.AuditEntry{
			Actor:         actor,
			Action:        "policy.updated",
			Module:        "policy",
			SourceAddress: c.RealIP(),
		})
	}
	return c.JSON(http.StatusOK, policy)
}
