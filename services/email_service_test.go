package services

import (
	"bufio"
	"context"
	"io"
	"mime"
	"net"
	"net/mail"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer adalah server SMTP minimal untuk test; isi DATA dikirim ke messages.
type fakeSMTPServer struct {
	host       string
	port       int
	messages   chan string
	rejectRcpt bool
	silent     bool

	mu    sync.Mutex
	conns []net.Conn
}

func startFakeSMTP(t *testing.T, configure func(*fakeSMTPServer)) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().(*net.TCPAddr)
	srv := &fakeSMTPServer{host: addr.IP.String(), port: addr.Port, messages: make(chan string, 8)}
	if configure != nil {
		configure(srv)
	}
	t.Cleanup(func() {
		_ = ln.Close()
		srv.mu.Lock()
		for _, c := range srv.conns {
			_ = c.Close()
		}
		srv.mu.Unlock()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			srv.mu.Lock()
			srv.conns = append(srv.conns, conn)
			srv.mu.Unlock()
			// server diam: terima koneksi tapi tidak pernah menyapa
			if srv.silent {
				continue
			}
			go srv.serve(conn)
		}
	}()
	return srv
}

func (s *fakeSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = io.WriteString(conn, line+"\r\n") }

	reply("220 fake.local ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250-fake.local")
			reply("250 8BITMIME")
		case strings.HasPrefix(cmd, "RCPT") && s.rejectRcpt:
			reply("550 mailbox unavailable")
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.messages <- b.String()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestSMTPEmailSender(t *testing.T) {
	srv := startFakeSMTP(t, nil)
	s := NewSMTPEmailSender(SMTPConfig{Host: srv.host, Port: srv.port, From: "crm@example.com", Timeout: 2 * time.Second})

	subject := "Reminder: Café Ñandú (1 hour)"
	require.NoError(t, s.SendEmail(context.Background(), "sari@example.com", subject, "<p>hi</p>", "hi"))

	var raw string
	select {
	case raw = <-srv.messages:
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	encoded := msg.Header.Get("Subject")
	assert.NotContains(t, encoded, "Café", "non-ASCII subject must be RFC 2047 encoded")
	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)

	assert.Contains(t, msg.Header.Get("From"), "crm@example.com")
	assert.Contains(t, msg.Header.Get("To"), "sari@example.com")
	assert.True(t, strings.HasPrefix(msg.Header.Get("Content-Type"), "multipart/alternative"))
	assert.Contains(t, raw, "Content-Transfer-Encoding:")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "<p>hi</p>")
}

func TestSMTPEmailSenderStripsHeaderBreaks(t *testing.T) {
	srv := startFakeSMTP(t, nil)
	s := NewSMTPEmailSender(SMTPConfig{Host: srv.host, Port: srv.port, From: "crm@example.com", Timeout: 2 * time.Second})

	require.NoError(t, s.SendEmail(context.Background(), "sari@example.com", "Reminder:\r\nBcc: evil@example.com", "", "hi"))
	raw := <-srv.messages

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.Header.Get("Bcc"))
	assert.NotContains(t, raw, "\r\nBcc:")
}

func TestSMTPEmailSenderErrors(t *testing.T) {
	disabled := NewSMTPEmailSender(SMTPConfig{})
	assert.ErrorIs(t, disabled.SendEmail(context.Background(), "a@b.c", "s", "", ""), ErrEmailDisabled)

	s := NewSMTPEmailSender(SMTPConfig{Host: "mail.local", Port: 25, From: "crm@example.com"})
	assert.ErrorIs(t, s.SendEmail(context.Background(), "", "s", "", ""), ErrNoEmailRecipient)

	srv := startFakeSMTP(t, func(s *fakeSMTPServer) { s.rejectRcpt = true })
	rejecting := NewSMTPEmailSender(SMTPConfig{Host: srv.host, Port: srv.port, From: "crm@example.com", Timeout: 2 * time.Second})
	err := rejecting.SendEmail(context.Background(), "a@example.com", "s", "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailDisabled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestSMTPEmailSenderTimeoutIsBounded(t *testing.T) {
	srv := startFakeSMTP(t, func(s *fakeSMTPServer) { s.silent = true })
	s := NewSMTPEmailSender(SMTPConfig{Host: srv.host, Port: srv.port, From: "crm@example.com", Timeout: 5 * time.Second})

	before := runtime.NumGoroutine()
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		start := time.Now()
		err := s.SendEmail(ctx, "a@example.com", "s", "", "")
		cancel()
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	}

	// tidak ada goroutine pengirim yang tertinggal setelah timeout
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 20*time.Millisecond)

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()
	assert.ErrorIs(t, s.SendEmail(expired, "a@example.com", "s", "", ""), context.DeadlineExceeded)
}

func TestRenderReminderEmail(t *testing.T) {
	html, text, err := renderReminderEmail(reminderEmailData{
		AppName:  "Estate CRM",
		UserName: "Sari",
		LeadName: "<b>Joko</b>",
		Message:  "bawa brosur",
		DueIn:    "30m",
		Interval: "30 minutes",
		Title:    "Reminder",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;Joko&lt;/b&gt;")
	assert.Contains(t, text, "<b>Joko</b> is due in 30m")
	assert.True(t, strings.Contains(text, "bawa brosur"))
}
