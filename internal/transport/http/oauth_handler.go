package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/service"
)

const opaqueFlowError = "oauth_failed"

type OAuthHandler struct {
	flows        *service.OAuthService
	credentials  *service.CredentialService
	audit        ports.AuditSink
	cookieName   string
	cookieSecure bool
}

func NewOAuthHandler(flows *service.OAuthService, credentials *service.CredentialService, audit ports.AuditSink, cookieName string, cookieSecure bool) *OAuthHandler {
	return &OAuthHandler{
		flows:        flows,
		credentials:  credentials,
		audit:        audit,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
	}
}

func RegisterOAuth(e *echo.Echo, h *OAuthHandler) {
	e.GET("/v1/oauth/:provider/begin", h.Begin)
	e.GET("/v1/oauth/:provider/callback", h.Callback)
}

// Begin godoc
//
//	@Summary	Start a third-party login flow
//	@Tags		oauth
//	@Param		provider		path	string	true	"provider name"
//	@Param		redirect_uri	query	string	true	"where login returns to; origin must be allow-listed"
//	@Success	302
//	@Failure	400	{object}	ErrorResponse
//	@Router		/v1/oauth/{provider}/begin [get]
func (h *OAuthHandler) Begin(c echo.Context) error {
	provider := c.Param("provider")
	authURL, err := h.flows.Begin(c.Request().Context(), provider, c.QueryParam("redirect_uri"))
	if err != nil {
		return writeServiceError(c, err)
	}
	h.record(c, "", "oauth.begin", provider)
	return c.Redirect(http.StatusFound, authURL)
}

// Callback godoc
//
//	@Summary	Provider redirect target; sets the session cookie on success
//	@Tags		oauth
//	@Param		provider	path	string	true	"provider name"
//	@Param		state		query	string	true	"flow ticket"
//	@Param		code		query	string	false	"authorization code"
//	@Param		error		query	string	false	"provider-reported error"
//	@Success	302
//	@Failure	400	{object}	ErrorResponse
//	@Router		/v1/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c echo.Context) error {
	provider := c.Param("provider")
	outcome, err := h.flows.Complete(
		c.Request().Context(),
		provider,
		c.QueryParam("state"),
		c.QueryParam("code"),
		c.QueryParam("error"),
	)
	if err != nil {
		// Without a trusted outcome there is no safe place to redirect to.
		if outcome == nil {
			return writeServiceError(c, err)
		}
		h.record(c, "", "oauth.failed", provider)
		return h.redirectFailure(c, outcome.RedirectOrigin)
	}
	if outcome.Identity == nil {
		h.record(c, "", "oauth.failed", provider)
		return h.redirectFailure(c, outcome.RedirectOrigin)
	}

	var fullName *string
	if outcome.Identity.Name != "" {
		name := outcome.Identity.Name
		fullName = &name
	}
	credential, err := h.credentials.IssueForIdentity(c.Request().Context(), outcome.Identity.Email, fullName)
	if err != nil {
		h.record(c, outcome.Identity.Email, "oauth.failed", provider)
		return h.redirectFailure(c, outcome.RedirectOrigin)
	}
	h.record(c, credential.User.Email, "oauth.completed", provider)

	// The credential travels only in an HTTP-only cookie. Query parameters
	// would leak it through history, referrers and access logs.
	c.SetCookie(h.sessionCookie(credential.Token, credential.ExpiresAt))
	return c.Redirect(http.StatusFound, outcome.RedirectOrigin+"/")
}

func (h *OAuthHandler) redirectFailure(c echo.Context, origin string) error {
	// Clear any stale credential before bouncing back with the opaque
	// indicator; upstream error detail stays in the logs.
	c.SetCookie(h.expiredCookie())
	return c.Redirect(http.StatusFound, origin+"/?auth_error="+opaqueFlowError)
}

func (h *OAuthHandler) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *OAuthHandler) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *OAuthHandler) record(c echo.Context, actor, action, details string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ports.AuditEntry{
		Actor:         actor,
		Action:        action,
		Module:        "oauth",
		Details:       details,
		SourceAddress: c.RealIP(),
	})
}
