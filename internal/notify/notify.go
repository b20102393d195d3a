package notify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/signalwatch/signalwatch/internal/analyze"
)

// Mailer is the outbound delivery transport: send(to, subject, body),
// success or failure. Everything past this interface is a black box.
type Mailer interface {
	Send(to, subject, body string) error
}

// Group is the set of impacts extracted from one analysis document,
// kept together for presentation.
type Group struct {
	DocumentTime int64 // epoch seconds of the source document
	Summary      string
	Impacts      []analyze.Impact
}

// Sender formats and dispatches alert messages. A failed send is
// reported to the caller and must not be treated as delivered.
type Sender struct {
	mailer Mailer
}

// NewSender creates a notification sender on top of a mailer.
func NewSender(mailer Mailer) *Sender {
	return &Sender{mailer: mailer}
}

// SendDigest delivers a consolidated digest of grouped impacts.
func (s *Sender) SendDigest(recipient string, threshold int, groups []Group, asOf time.Time) error {
	subject := fmt.Sprintf("High Impact Stock Alert - %s", formatTime(asOf.Unix()))
	return s.mailer.Send(recipient, subject, DigestBody(threshold, groups, asOf))
}

// SendSingle delivers one raw analysis text as-is.
func (s *Sender) SendSingle(recipient, rawText string, asOf time.Time) error {
	subject := fmt.Sprintf("High Impact Stock Alert - %s", formatTime(asOf.Unix()))
	body := fmt.Sprintf("High Impact Stock Alert\n\nTimestamp: %s\n\nAnalysis:\n%s\n", formatTime(asOf.Unix()), rawText)
	return s.mailer.Send(recipient, subject, body)
}

// DigestBody renders the plaintext digest: a header with the as-of time
// and threshold, one section per source document, and a trailing total.
func DigestBody(threshold int, groups []Group, asOf time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "High Impact Stock Alert\n\nAs of: %s\nYour likelihood threshold: %d\n\n", formatTime(asOf.Unix()), threshold)

	total := 0
	for _, g := range groups {
		fmt.Fprintf(&b, "Analysis from %s", formatTime(g.DocumentTime))
		if g.Summary != "" {
			fmt.Fprintf(&b, " - %s", g.Summary)
		}
		b.WriteString("\n")
		for _, imp := range g.Impacts {
			fmt.Fprintf(&b, "  %s (%s) likelihood %d/10: %s\n", imp.Ticker, imp.Company, imp.Likelihood, imp.Reason)
			total++
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total impacts: %d\n\nThis alert was generated based on recent news analysis.\n", total)
	return b.String()
}

func formatTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04:05")
}

// SMTPMailer delivers mail over SMTPS.
type SMTPMailer struct {
	host     string
	port     int
	from     string
	password string
}

// NewSMTPMailer creates an SMTP mailer. The account password is read
// from the environment variable named by passwordEnv.
func NewSMTPMailer(host string, port int, from, passwordEnv string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		from:     from,
		password: os.Getenv(passwordEnv),
	}
}

// IsConfigured checks that the sender account is usable.
func (m *SMTPMailer) IsConfigured() bool {
	return m.from != "" && m.password != ""
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("SMTP sender not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.from),
		mail.WithPassword(m.password),
	)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
