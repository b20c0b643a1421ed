package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hivecraft/identity-core/internal/domain"
	"github.com/hivecraft/identity-core/internal/guard"
	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/service"
	"github.com/hivecraft/identity-core/internal/util"
)

// AuthHandler serves proof issuance and verification. Issuance and
// verification run behind separate per-source windows; only issuance gets the
// per-identity cooldown, so a retry after a typo is never blocked by it.
type AuthHandler struct {
	proofs       *service.ProofService
	credentials  *service.CredentialService
	issueWindow  *guard.Window
	verifyWindow *guard.Window
	cooldown     guard.CooldownTracker
	audit        ports.AuditSink
}

func NewAuthHandler(proofs *service.ProofService, credentials *service.CredentialService, issueWindow, verifyWindow *guard.Window, cooldown guard.CooldownTracker, audit ports.AuditSink) *AuthHandler {
	return &AuthHandler{
		proofs:       proofs,
		credentials:  credentials,
		issueWindow:  issueWindow,
		verifyWindow: verifyWindow,
		cooldown:     cooldown,
		audit:        audit,
	}
}

func RegisterAuth(e *echo.Echo, h *AuthHandler) {
	e.POST("/v1/auth/proof/request", h.RequestProof)
	e.POST("/v1/auth/proof/verify", h.VerifyProof)
}

// RequestProof godoc
//
//	@Summary	Issue a verification or reset proof and mail it to the identity
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ProofRequest	true	"proof request"
//	@Success	202		{object}	ProofRequestResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	429		{object}	ErrorResponse
//	@Router		/v1/auth/proof/request [post]
func (h *AuthHandler) RequestProof(c echo.Context) error {
	var req ProofRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("malformed request body"))
	}
	purpose := domain.ProofPurpose(req.Purpose)
	kind := domain.ProofKind(req.Kind)
	if !purpose.Valid() || !kind.Valid() {
		return c.JSON(http.StatusBadRequest, util.Error("unknown purpose or kind"))
	}
	identity := service.NormalizeIdentity(req.Email)
	if identity == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email is required"))
	}

	// Malformed requests were rejected above and never reached the counters.
	if ok, retryAfter := h.issueWindow.Allow(c.RealIP()); !ok {
		return rateLimited(c, &service.RateLimitedError{RetryAfter: retryAfter})
	}
	if wait, ok := h.cooldown.Touch(identity); !ok {
		return rateLimited(c, &service.RateLimitedError{RetryAfter: wait})
	}

	expiresAt, err := h.proofs.Issue(c.Request().Context(), identity, purpose, kind)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	h.record(c, identity, "proof.issued", string(purpose)+"/"+string(kind))
	return c.JSON(http.StatusAccepted, ProofRequestResponse{ExpiresAt: expiresAt})
}

// VerifyProof godoc
//
//	@Summary	Present a proof; yields a credential or completes a reset
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ProofVerifyRequest	true	"proof presentation"
//	@Success	200		{object}	CredentialResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	429		{object}	ErrorResponse
//	@Router		/v1/auth/proof/verify [post]
func (h *AuthHandler) VerifyProof(c echo.Context) error {
	var req ProofVerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("malformed request body"))
	}
	purpose := domain.ProofPurpose(req.Purpose)
	kind := domain.ProofKind(req.Kind)
	if !purpose.Valid() || !kind.Valid() {
		return c.JSON(http.StatusBadRequest, util.Error("unknown purpose or kind"))
	}
	if req.Candidate == "" {
		return c.JSON(http.StatusBadRequest, util.Error("candidate is required"))
	}
	if kind == domain.KindShortCode && req.Email == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email is required for code verification"))
	}
	if purpose == domain.PurposeResetCredential && req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, util.Error("new_password is required"))
	}

	if ok, retryAfter := h.verifyWindow.Allow(c.RealIP()); !ok {
		return rateLimited(c, &service.RateLimitedError{RetryAfter: retryAfter})
	}

	ctx := c.Request().Context()

	// The new password is checked against policy before the ledger is
	// touched; a rejected password must not consume the single-use proof.
	if purpose == domain.PurposeResetCredential {
		if err := h.credentials.ValidateNewPassword(ctx, req.NewPassword); err != nil {
			return h.writeServiceError(c, err)
		}
	}

	var verified *domain.VerifiedIdentity
	var err error
	switch kind {
	case domain.KindShortCode:
		verified, err = h.proofs.VerifyShortCode(ctx, req.Email, purpose, req.Candidate)
	default:
		verified, err = h.proofs.VerifyLongToken(ctx, purpose, req.Candidate)
	}
	if err != nil {
		h.record(c, req.Email, "proof.rejected", string(purpose))
		return h.writeServiceError(c, err)
	}
	h.record(c, verified.Identity, "proof.verified", string(purpose))

	switch purpose {
	case domain.PurposeResetCredential:
		if err := h.credentials.CompletePasswordReset(ctx, verified, req.NewPassword); err != nil {
			return h.writeServiceError(c, err)
		}
		h.record(c, verified.Identity, "credential.reset", "")
		return c.JSON(http.StatusOK, SuccessResponse{Success: true})
	default:
		credential, err := h.credentials.ConfirmEmail(ctx, verified)
		if err != nil {
			return h.writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, credentialResponse(credential))
	}
}

func (h *AuthHandler) record(c echo.Context, actor, action, details string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ports.AuditEntry{
		Actor:         actor,
		Action:        action,
		Module:        "auth",
		Details:       details,
		SourceAddress: c.RealIP(),
	})
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	return writeServiceError(c, err)
}

func writeServiceError(c echo.Context, err error) error {
	var validation *service.ValidationError
	var limited *service.RateLimitedError
	var configuration *service.ConfigurationError
	var upstream *service.UpstreamProviderError
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, util.Error(validation.Error()))
	case errors.Is(err, service.ErrInvalidOrExpiredProof):
		return c.JSON(http.StatusBadRequest, util.Error(service.ErrInvalidOrExpiredProof.Error()))
	case errors.Is(err, service.ErrInvalidFlowState):
		return c.JSON(http.StatusBadRequest, util.Error(service.ErrInvalidFlowState.Error()))
	case errors.As(err, &limited):
		return rateLimited(c, limited)
	case errors.As(err, &configuration):
		log.Printf("SEVERE: %v", configuration)
		return c.JSON(http.StatusInternalServerError, util.Error("server configuration error"))
	case errors.As(err, &upstream):
		log.Printf("upstream provider failure: %v (%v)", upstream, upstream.Unwrap())
		return c.JSON(http.StatusBadGateway, util.Error(upstream.Error()))
	default:
		log.Printf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Error("internal error"))
	}
}

func rateLimited(c echo.Context, err *service.RateLimitedError) error {
	c.Response().Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds()))
	return c.JSON(http.StatusTooManyRequests, util.Error(err.Error()))
}

func credentialResponse(credential *service.Credential) CredentialResponse {
	return CredentialResponse{
		Token:     credential.Token,
		ExpiresAt: credential.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		User: AuthUser{
			ID:            credential.User.ID.String(),
			Email:         credential.User.Email,
			FullName:      credential.User.FullName,
			EmailVerified: credential.User.EmailVerified,
			CreatedAt:     credential.User.CreatedAt,
		},
	}
}
