package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/hivecraft/identity-core/internal/repository/ports"
)

// ProofMailer delivers proof plaintexts over SMTP. It is the only component
// that ever sees a plaintext after issuance.
type ProofMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	linkBase string
}

func NewProofMailer(host, port, username, password, from, linkBase string) *ProofMailer {
	return &ProofMailer{
		host:     strings.TrimSpace(host),
		port:     strings.TrimSpace(port),
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
		linkBase: strings.TrimRight(strings.TrimSpace(linkBase), "/"),
	}
}

func (m *ProofMailer) Send(ctx context.Context, identity string, template ports.MailTemplate, variables map[string]string) error {
	if m == nil {
		return errors.New("mailer not configured")
	}
	if m.host == "" || m.port == "" || m.from == "" {
		return errors.New("mailer missing configuration")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	subject, body, err := m.render(template, variables)
	if err != nil {
		return err
	}

	message := strings.Builder{}
	message.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", identity))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	message.WriteString(body)
	message.WriteString("\r\n")

	addr := net.JoinHostPort(m.host, m.port)
	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{identity}, []byte(message.String()))
}

func (m *ProofMailer) render(template ports.MailTemplate, variables map[string]string) (subject, body string, err error) {
	code := variables["code"]
	token := variables["token"]

	switch template {
	case ports.TemplateVerifyByCode:
		return "Verify your email address",
			fmt.Sprintf("Use the following code to verify your email address: %s\n\nIf you did not request this, ignore this email.", code), nil
	case ports.TemplateResetByCode:
		return "Your password reset code",
			fmt.Sprintf("Use the following code to reset your password: %s\n\nIf you did not request this, ignore this email.", code), nil
	case ports.TemplateVerifyByLink:
		link := m.link("/auth/verify", token)
		return "Verify your email address",
			fmt.Sprintf("Click the link below to verify your email address:\n\n%s\n\nIf you did not request this, ignore this email.", link), nil
	case ports.TemplateResetByLink:
		link := m.link("/auth/reset", token)
		return "Reset your password",
			fmt.Sprintf("Click the link below to reset your password:\n\n%s\n\nIf you did not request this, ignore this email.", link), nil
	default:
		return "", "", fmt.Errorf("unknown mail template %q", template)
	}
}

func (m *ProofMailer) link(path, token string) string {
	return m.linkBase + path + "?token=" + url.QueryEscape(token)
}
