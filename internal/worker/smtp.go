package worker

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raci-tracker/backend/config"
	"github.com/raci-tracker/backend/pkg/queue"
)

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	fromName string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSender returns an SMTP sender, or a LogSender when no SMTP host is configured.
func NewSender(cfg config.EmailConfig, logger *zap.Logger) Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return &LogSender{logger: logger}
	}
	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		send:     smtp.SendMail,
	}
	if cfg.SMTPUser != "" {
		s.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return s
}

func (s *SMTPSender) message(msg queue.EmailPayload, now time.Time) []byte {
	to := msg.RecipientEmail
	if msg.RecipientName != "" {
		to = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.RecipientName), msg.RecipientEmail)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// Send implements Sender. net/smtp has no context support; cancellation is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg queue.EmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(s.addr, s.auth, s.from, []string{msg.RecipientEmail}, s.message(msg, time.Now()))
}

// LogSender writes emails to the log. Used in development.
type LogSender struct {
	logger *zap.Logger
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg queue.EmailPayload) error {
	s.logger.Info("email (not sent)", zap.String("kind", string(msg.Kind)), zap.String("to", msg.RecipientEmail),
		zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}
