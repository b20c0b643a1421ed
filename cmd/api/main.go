package main

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/hivecraft/identity-core/internal/audit"
	"github.com/hivecraft/identity-core/internal/bus"
	"github.com/hivecraft/identity-core/internal/config"
	"github.com/hivecraft/identity-core/internal/guard"
	"github.com/hivecraft/identity-core/internal/providers"
	"github.com/hivecraft/identity-core/internal/repository/ports"
	"github.com/hivecraft/identity-core/internal/repository/postgres"
	"github.com/hivecraft/identity-core/internal/service"
	transport "github.com/hivecraft/identity-core/internal/transport/http"
	"github.com/hivecraft/identity-core/internal/transport/mail"
	"github.com/hivecraft/identity-core/internal/util"
)

func main() {
	cfg := config.Load()

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	proofRepo := postgres.NewProofRepo(db)
	policyRepo := postgres.NewPolicyRepo(db)
	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)

	var auditSink ports.AuditSink = audit.LogSink{}
	if cfg.AuditTCPAddr != "" {
		writer, err := audit.NewTCPWriter(cfg.AuditTCPAddr)
		if err != nil {
			log.Fatalf("audit collector: %v", err)
		}
		defer func(w io.Closer) { _ = w.Close() }(writer)
		auditSink = audit.NewSink(writer)
	}

	broadcast := bus.NewMemory()
	mailer := mail.NewProofMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.FrontendBaseURL)
	tokens := util.NewJWTManager(cfg.JWTSecret, cfg.SessionTTL)

	policySvc := service.NewPolicyService(policyRepo, broadcast)
	proofSvc := service.NewProofService(proofRepo, mailer)
	credentialSvc := service.NewCredentialService(userRepo, sessionRepo, policySvc, tokens)

	oauthSvc := service.NewOAuthService(service.OAuthConfig{
		StateSecret:              cfg.OAuthStateSecret,
		RedirectAllowlist:        cfg.OAuthRedirectAllowlist,
		SharedCredentialsAllowed: cfg.ManagedDeployment,
	})
	if cfg.GoogleClientID != "" {
		callback := cfg.OAuthCallbackBaseURL + "/v1/oauth/google/callback"
		oauthSvc.Register(providers.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, callback), cfg.GoogleSharedCredentials)
	}
	if cfg.GitHubClientID != "" {
		callback := cfg.OAuthCallbackBaseURL + "/v1/oauth/github/callback"
		oauthSvc.Register(providers.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, callback), cfg.GitHubSharedCredentials)
	}

	issueWindow := guard.NewWindow(cfg.IssueLimit, cfg.IssueWindow)
	verifyWindow := guard.NewWindow(cfg.VerifyLimit, cfg.VerifyWindow)
	cooldown := guard.NewMemoryCooldown(cfg.IssueCooldown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cooldown.RunSweeper(ctx, time.Minute)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				issueWindow.Sweep()
				verifyWindow.Sweep()
			}
		}
	}()

	e := transport.NewRouter(cfg.AllowOrigins)
	transport.RegisterAuth(e, transport.NewAuthHandler(proofSvc, credentialSvc, issueWindow, verifyWindow, cooldown, auditSink))
	transport.RegisterPolicy(e, transport.NewPolicyHandler(policySvc, auditSink), credentialSvc)
	transport.RegisterOAuth(e, transport.NewOAuthHandler(oauthSvc, credentialSvc, auditSink, cfg.SessionCookie, cfg.CookieSecure))
	transport.RegisterSwagger(e)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
