// Package email provides email notification delivery via SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/merchware/notify/internal/domain"
	"github.com/merchware/notify/internal/notifications"
	"golang.org/x/time/rate"
)

// Config holds email channel configuration.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromAddress  string
	SendTimeout  time.Duration
	RateLimit    float64 // messages per second, 0 disables limiting
}

// Channel delivers notifications over SMTP with STARTTLS.
type Channel struct {
	config  Config
	auth    smtp.Auth
	limiter *rate.Limiter
}

var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NewChannel creates an email channel. The channel reports unconfigured
// (and the worker fails its tasks) until both an SMTP host and a
// from-address are set.
func NewChannel(config Config) *Channel {
	if config.SMTPPort == 0 {
		config.SMTPPort = 587
	}
	if config.SendTimeout == 0 {
		config.SendTimeout = 30 * time.Second
	}

	var auth smtp.Auth
	if config.SMTPUser != "" && config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, config.SMTPHost)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	slog.Info("email channel configured",
		"smtp_host", config.SMTPHost,
		"smtp_port", config.SMTPPort,
		"from_address", config.FromAddress,
		"rate_limit", config.RateLimit,
	)

	return &Channel{
		config:  config,
		auth:    auth,
		limiter: limiter,
	}
}

// Type returns the channel type.
func (c *Channel) Type() domain.ChannelType {
	return domain.ChannelTypeEmail
}

// Name returns the human-readable channel name.
func (c *Channel) Name() string {
	return "Email"
}

// IsConfigured reports whether a mail transport and from-address are set.
func (c *Channel) IsConfigured() bool {
	return c.config.SMTPHost != "" && c.config.FromAddress != ""
}

// RecipientLabel names the address kind this channel delivers to.
func (c *Channel) RecipientLabel() string {
	return "email address"
}

// Validate reports whether the address is RFC-shaped.
func (c *Channel) Validate(address string) bool {
	return addressPattern.MatchString(address)
}

// Send delivers one rendered message. The SMTP exchange is bounded by
// the configured send timeout; transport failures are returned for the
// worker to retry.
func (c *Channel) Send(ctx context.Context, msg notifications.Message) (*notifications.DeliveryResult, error) {
	if !c.IsConfigured() {
		return nil, errors.New("email channel not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.SendTimeout)
	defer cancel()

	if err := c.sendMail(ctx, msg); err != nil {
		return nil, err
	}

	return &notifications.DeliveryResult{
		Metadata: map[string]any{
			"transport": "smtp",
			"smtp_host": c.config.SMTPHost,
		},
	}, nil
}

func (c *Channel) sendMail(ctx context.Context, msg notifications.Message) error {
	addr := fmt.Sprintf("%s:%d", c.config.SMTPHost, c.config.SMTPPort)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: c.config.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if c.auth != nil {
		if err := client.Auth(c.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(extractEmail(c.config.FromAddress)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(c.buildMessage(msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// buildMessage constructs the email message with headers.
func (c *Channel) buildMessage(msg notifications.Message) []byte {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", c.config.FromAddress))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return []byte(b.String())
}

// extractEmail extracts the address from formats like "Name <email@example.com>".
func extractEmail(address string) string {
	if idx := strings.Index(address, "<"); idx != -1 {
		end := strings.Index(address, ">")
		if end > idx {
			return address[idx+1 : end]
		}
	}
	return address
}
