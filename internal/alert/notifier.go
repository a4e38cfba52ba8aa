// Package alert handles sending notifications when a rebalance completes.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Notifier is the interface for sending alert messages.
type Notifier interface {
	Send(subject, body string) error
	Close() error
}

// NoOpNotifier is a notifier that does nothing. It is used when alerting is disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing and returns nil.
func (n *NoOpNotifier) Send(subject, body string) error {
	return nil
}

// Close does nothing and returns nil.
func (n *NoOpNotifier) Close() error {
	return nil
}

// MailNotifier sends completion mails over SMTP with plain authentication.
type MailNotifier struct {
	host     string
	port     int
	from     string
	to       []string
	password string
}

// NewMailNotifier creates a mail notifier. to may hold several
// comma-separated recipients.
func NewMailNotifier(host string, port int, from, to, password string) *MailNotifier {
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &MailNotifier{host: host, port: port, from: from, to: recipients, password: password}
}

// Send delivers one mail.
func (n *MailNotifier) Send(subject, body string) error {
	auth := smtp.PlainAuth("", n.from, n.password, n.host)
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	if err := smtp.SendMail(addr, auth, n.from, n.to, n.message(subject, body)); err != nil {
		return fmt.Errorf("failed to send alert mail: %w", err)
	}
	return nil
}

func (n *MailNotifier) message(subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.from, strings.Join(n.to, ", "), subject, body)
	return []byte(msg)
}

// Close is a no-op; SMTP connections are per-send.
func (n *MailNotifier) Close() error {
	return nil
}
