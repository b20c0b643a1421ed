package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration

	AllowOrigins []string

	OAuthStateSecret        string
	OAuthRedirectAllowlist  []string
	OAuthCallbackBaseURL    string
	ManagedDeployment       bool
	GoogleClientID          string
	GoogleClientSecret      string
	GoogleSharedCredentials bool
	GitHubClientID          string
	GitHubClientSecret      string
	GitHubSharedCredentials bool

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	FrontendBaseURL string

	IssueLimit      int
	IssueWindow     time.Duration
	VerifyLimit     int
	VerifyWindow    time.Duration
	IssueCooldown   time.Duration
	AuditTCPAddr    string
	SessionCookie   string
	CookieSecure    bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	return Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		JWTSecret:   must("JWT_SECRET"),
		SessionTTL:  getduration("SESSION_TTL", 24*time.Hour),

		AllowOrigins: splitAndTrim(getenv("ALLOW_ORIGINS", "*")),

		OAuthStateSecret:        getenv("OAUTH_STATE_SECRET", ""),
		OAuthRedirectAllowlist:  splitAndTrimEmpty(getenv("OAUTH_REDIRECT_ALLOWLIST", "")),
		OAuthCallbackBaseURL:    getenv("OAUTH_CALLBACK_BASE_URL", ""),
		ManagedDeployment:       getenv("DEPLOYMENT_MODE", "self_hosted") == "managed",
		GoogleClientID:          getenv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:      getenv("GOOGLE_CLIENT_SECRET", ""),
		GoogleSharedCredentials: getenv("GOOGLE_SHARED_CREDENTIALS", "false") == "true",
		GitHubClientID:          getenv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:      getenv("GITHUB_CLIENT_SECRET", ""),
		GitHubSharedCredentials: getenv("GITHUB_SHARED_CREDENTIALS", "false") == "true",

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", ""),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),

		FrontendBaseURL: getenv("FRONTEND_BASE_URL", ""),

		IssueLimit:    getint("PROOF_ISSUE_LIMIT", 5),
		IssueWindow:   getduration("PROOF_ISSUE_WINDOW", 15*time.Minute),
		VerifyLimit:   getint("PROOF_VERIFY_LIMIT", 10),
		VerifyWindow:  getduration("PROOF_VERIFY_WINDOW", 15*time.Minute),
		IssueCooldown: getduration("PROOF_ISSUE_COOLDOWN", 60*time.Second),
		AuditTCPAddr:  getenv("AUDIT_TCP_ADDR", ""),
		SessionCookie: getenv("SESSION_COOKIE_NAME", "identity_session"),
		CookieSecure:  getenv("SESSION_COOKIE_SECURE", "true") == "true",
	}
}

func splitAndTrim(input string) []string {
	out := splitAndTrimEmpty(input)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func splitAndTrimEmpty(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v, err := strconv.Atoi(getenv(k, "")); err == nil && v > 0 {
		return v
	}
	return d
}

func getduration(k string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(getenv(k, "")); err == nil && v > 0 {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
