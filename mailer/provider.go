package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrProviderUnavailable marks transport-level delivery failures that are
// worth retrying. Providers attach it with errors.Mark so callers can test
// with errors.Is without depending on provider internals.
var ErrProviderUnavailable = errors.New("mail provider unavailable")

// Message is a single outbound email.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	HTML    string
}

// Provider delivers a rendered message. Implementations wrap a concrete
// transport (SMTP, an ESP API) behind a uniform call.
type Provider interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// MemoryProvider records messages instead of delivering them. Used in
// tests and local development; optionally fails the first FailFirst sends
// with a retryable error to exercise retry paths.
type MemoryProvider struct {
	mu        sync.Mutex
	sent      []Message
	failFirst int
	attempts  int

	// FailAddresses rejects specific recipients permanently.
	FailAddresses map[string]bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

// FailFirst makes the next n Send calls fail with a retryable error.
func (p *MemoryProvider) FailFirst(n int) *MemoryProvider {
	p.mu.Lock()
	p.failFirst = n
	p.mu.Unlock()
	return p
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) Send(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failFirst {
		return errors.Mark(errors.New("injected transport failure"), ErrProviderUnavailable)
	}
	if p.FailAddresses[msg.To] {
		return errors.Newf("recipient rejected: %s", msg.To)
	}
	p.sent = append(p.sent, msg)
	return nil
}

// Sent returns a snapshot of delivered messages.
func (p *MemoryProvider) Sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.sent))
	copy(out, p.sent)
	return out
}

// Attempts returns how many Send calls were made, including failed ones.
func (p *MemoryProvider) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// SMTPProvider delivers mail through a plain SMTP relay. It is the
// provider of last resort when no ESP integration is configured.
type SMTPProvider struct {
	addr string
	auth smtp.Auth
}

// NewSMTPProvider returns a provider relaying through addr (host:port).
// auth may be nil for unauthenticated relays.
func NewSMTPProvider(addr string, auth smtp.Auth) *SMTPProvider {
	return &SMTPProvider{addr: addr, auth: auth}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", msg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	if msg.ID != "" {
		fmt.Fprintf(&sb, "X-Message-ID: %s\r\n", msg.ID)
	}
	sb.WriteString("\r\n")
	sb.WriteString(msg.HTML)

	if err := smtp.SendMail(p.addr, p.auth, msg.From, []string{msg.To}, []byte(sb.String())); err != nil {
		// SMTP failures are transport failures until proven otherwise.
		return errors.Mark(errors.Wrapf(err, "smtp relay %s", p.addr), ErrProviderUnavailable)
	}
	return nil
}
