package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/viewavocats/estimia/internal/resilience"
)

// MailConfig configures SMTP delivery.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Retry    resilience.RetryConfig
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends records by SMTP, retrying transient failures.
type Mailer struct {
	cfg     MailConfig
	send    sendFunc
	nowFunc func() time.Time
}

// NewMailer creates a mailer. Authentication is used when Username is set.
func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, send: sendMail, nowFunc: time.Now}
}

// Notify implements Notifier.
func (m *Mailer) Notify(ctx context.Context, rec Record) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := m.message(rec)

	retry := m.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("smtp", "send")
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return m.send(ctx, addr, auth, m.cfg.From, m.cfg.To, msg)
	})
	if err != nil {
		return eris.Wrapf(err, "notify: send mail for record %s", rec.ID)
	}
	return nil
}

// sendMail is smtp.SendMail bound to ctx: the connection deadline follows
// ctx's deadline and cancelling ctx aborts a stalled exchange.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return eris.Wrap(err, "smtp: dial")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close() //nolint:errcheck
		return eris.Wrap(err, "smtp: greeting")
	}
	defer c.Close() //nolint:errcheck

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return eris.Wrap(err, "smtp: starttls")
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return eris.New("smtp: server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return eris.Wrap(err, "smtp: auth")
		}
	}
	if err := c.Mail(from); err != nil {
		return eris.Wrap(err, "smtp: mail from")
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return eris.Wrapf(err, "smtp: rcpt %s", rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		return eris.Wrap(err, "smtp: data")
	}
	if _, err := w.Write(msg); err != nil {
		return eris.Wrap(err, "smtp: write body")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "smtp: end data")
	}
	return eris.Wrap(c.Quit(), "smtp: quit")
}

func (m *Mailer) message(rec Record) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", rec.Subject()))
	fmt.Fprintf(&b, "Date: %s\r\n", m.nowFunc().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(rec.Body(), "\n", "\r\n"))
	return []byte(b.String())
}
