package notify

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewavocats/estimia/internal/resilience"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestMailer(cfg MailConfig, results ...error) (*Mailer, *[]sentMail) {
	m := NewMailer(cfg)
	m.nowFunc = func() time.Time { return time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC) }
	var sent []sentMail
	m.send = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		if len(results) == 0 {
			return nil
		}
		err := results[0]
		results = results[1:]
		return err
	}
	return m, &sent
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.FromRetryConfig(3, 1)
	cfg.Jitter = 0
	return cfg
}

func TestMailer_Sends(t *testing.T) {
	m, sent := newTestMailer(MailConfig{
		Host:     "smtp.example.fr",
		Username: "site",
		Password: "secret",
		From:     "site@example.fr",
		To:       []string{"contact@example.fr", "associe@example.fr"},
		Retry:    fastRetry(),
	})

	rec := Record{ID: "r1", Kind: KindEstimate, ClientType: "Particulier", Urgency: "Normal", Question: "Garde d'enfant"}
	require.NoError(t, m.Notify(context.Background(), rec))

	require.Len(t, *sent, 1)
	got := (*sent)[0]
	assert.Equal(t, "smtp.example.fr:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "site@example.fr", got.from)
	assert.Equal(t, []string{"contact@example.fr", "associe@example.fr"}, got.to)
	assert.Contains(t, got.msg, "To: contact@example.fr, associe@example.fr\r\n")
	assert.Contains(t, got.msg, "Subject: =?utf-8?q?")
	assert.Contains(t, got.msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, got.msg, "\r\n\r\nNouvelle question posée :\r\n")
	assert.Contains(t, got.msg, "Question : Garde d'enfant\r\n")
}

func TestMailer_NoAuthWithoutUsername(t *testing.T) {
	m, sent := newTestMailer(MailConfig{Host: "localhost", Port: 25, From: "a@b.fr", To: []string{"c@d.fr"}})

	require.NoError(t, m.Notify(context.Background(), Record{ID: "r1"}))
	require.Len(t, *sent, 1)
	assert.Equal(t, "localhost:25", (*sent)[0].addr)
	assert.Nil(t, (*sent)[0].auth)
}

func TestMailer_RetriesTransientReply(t *testing.T) {
	m, sent := newTestMailer(
		MailConfig{Host: "smtp.example.fr", From: "a@b.fr", To: []string{"c@d.fr"}, Retry: fastRetry()},
		&textproto.Error{Code: 421, Msg: "service not available"},
		nil,
	)

	require.NoError(t, m.Notify(context.Background(), Record{ID: "r1"}))
	assert.Len(t, *sent, 2)
}

func TestMailer_PermanentReplyNotRetried(t *testing.T) {
	m, sent := newTestMailer(
		MailConfig{Host: "smtp.example.fr", From: "a@b.fr", To: []string{"c@d.fr"}, Retry: fastRetry()},
		&textproto.Error{Code: 550, Msg: "mailbox unavailable"},
	)

	err := m.Notify(context.Background(), Record{ID: "r9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: send mail for record r9")
	assert.Len(t, *sent, 1)

	var tpErr *textproto.Error
	assert.True(t, errors.As(err, &tpErr))
}

// fakeSMTP accepts one connection and plays a minimal ESMTP server. The
// message body received after DATA is sent on the returned channel.
func fakeSMTP(t *testing.T) (host string, port int, bodies <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		tc := textproto.NewConn(conn)
		_ = tc.PrintfLine("220 test ESMTP")
		for {
			line, err := tc.ReadLine()
			if err != nil {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				_ = tc.PrintfLine("500 empty command")
				continue
			}
			switch strings.ToUpper(fields[0]) {
			case "EHLO":
				_ = tc.PrintfLine("250-test")
				_ = tc.PrintfLine("250 8BITMIME")
			case "DATA":
				_ = tc.PrintfLine("354 go ahead")
				body, err := tc.ReadDotBytes()
				if err != nil {
					return
				}
				ch <- string(body)
				_ = tc.PrintfLine("250 queued")
			case "QUIT":
				_ = tc.PrintfLine("221 bye")
				return
			default:
				_ = tc.PrintfLine("250 ok")
			}
		}
	}()

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port, ch
}

func TestMailer_DeliversOverSMTP(t *testing.T) {
	host, port, bodies := fakeSMTP(t)
	m := NewMailer(MailConfig{Host: host, Port: port, From: "site@example.fr", To: []string{"contact@example.fr"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Notify(ctx, Record{ID: "r1", Kind: KindContact, ContactName: "Jeanne", Question: "Bonjour"}))

	select {
	case body := <-bodies:
		assert.Contains(t, body, "Nom : Jeanne\n")
		assert.Contains(t, body, "Message : Bonjour\n")
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestMailer_StalledServerHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck

	// Accept connections but never send the greeting.
	var mu sync.Mutex
	var held []net.Conn
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			c.Close() //nolint:errcheck
		}
	})
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()

	host, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	m := NewMailer(MailConfig{Host: host, Port: port, From: "a@b.fr", To: []string{"c@d.fr"}, Retry: fastRetry()})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.Notify(ctx, Record{ID: "r1"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMailer_CancelAbortsExchange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close() //nolint:errcheck
		time.Sleep(3 * time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err = sendMail(ctx, ln.Addr().String(), nil, "a@b.fr", []string{"c@d.fr"}, []byte("x"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
