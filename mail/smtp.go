package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures SMTPDispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// From defaults to User.
	From    string
	AppName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher sends codes as plain-text mail over SMTP with PLAIN auth.
type SMTPDispatcher struct {
	config SMTPConfig
	send   sendFunc
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.AppName == "" {
		cfg.AppName = "Wander"
	}
	return &SMTPDispatcher{
		config: cfg,
		send:   smtp.SendMail,
	}
}

// SendCode renders the template for purpose and hands the message to the
// SMTP server. net/smtp has no context support; ctx is only checked before
// the handshake starts.
func (d *SMTPDispatcher) SendCode(ctx context.Context, target, code string, purpose Purpose) error {
	if err := checkRecipient(target); err != nil {
		return err
	}
	subject, body, err := render(d.config.AppName, code, purpose)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", d.config.Host, d.config.Port)
	var auth smtp.Auth
	if d.config.User != "" {
		auth = smtp.PlainAuth("", d.config.User, d.config.Password, d.config.Host)
	}

	msg := buildMessage(d.config.From, target, subject, body)
	if err := d.send(addr, auth, d.config.From, []string{target}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", target, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func render(appName, code string, purpose Purpose) (subject, body string, err error) {
	switch purpose {
	case PurposeLoginLegacyVerify:
		subject = fmt.Sprintf("%s - Your Login Verification Code", appName)
		body = fmt.Sprintf("Hello,\n\n"+
			"We upgraded how %s signs you in. Enter the code below to confirm it is you:\n\n"+
			"Login Code: %s\n\n"+
			"If you did not try to sign in, you can ignore this message.\n\n"+
			"The %s Team", appName, code, appName)
	case PurposeRegisterVerify:
		subject = fmt.Sprintf("%s - Verify Your Email Address", appName)
		body = fmt.Sprintf("Hello,\n\n"+
			"Thanks for signing up for %s! To finish creating your account, enter this code:\n\n"+
			"Verification Code: %s\n\n"+
			"The %s Team", appName, code, appName)
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	return subject, body, nil
}
