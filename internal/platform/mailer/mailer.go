// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer delivers transactional email over SMTP.

One [Mailer] wraps one configured SMTP account. Selecting between the primary
and the secondary account is a configuration decision made at wiring time;
both go through the same code path.

The underlying SMTP client is created lazily on the first send and reused
afterwards. Initialization is guarded by a mutex so concurrent first sends
build exactly one client.
*/
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/taibuivan/storageup/internal/platform/config"
)

// ErrNotConfigured is returned by Send when the account lacks host or credentials.
var ErrNotConfigured = errors.New("mailer: smtp account is not configured")

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends [Message] values through one SMTP account.
type Mailer struct {
	account config.SMTP
	domain  string
	logger  *slog.Logger

	mu     sync.Mutex
	client *mail.Client
}

// New builds a [Mailer] for account. No connection is opened until the first Send.
func New(account config.SMTP, logger *slog.Logger) *Mailer {
	return &Mailer{
		account: account,
		domain:  messageIDDomain(account.From),
		logger:  logger,
	}
}

// Send delivers message and returns the generated Message-ID.
//
// Any error, including a missing configuration, means the email was not delivered.
func (mailer *Mailer) Send(ctx context.Context, message Message) (string, error) {
	client, err := mailer.getClient()
	if err != nil {
		return "", err
	}

	msg := mail.NewMsg()
	if err := msg.From(mailer.account.From); err != nil {
		return "", fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if err := msg.To(message.To); err != nil {
		return "", fmt.Errorf("mailer: invalid recipient: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(mail.TypeTextPlain, message.Text)
	if message.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, message.HTML)
	}

	messageID := uuid.NewString() + "@" + mailer.domain
	msg.SetMessageIDWithValue(messageID)

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("mailer: send failed: %w", err)
	}

	mailer.logger.Info("email_sent",
		slog.String("message_id", messageID),
		slog.String("subject", message.Subject),
	)

	return messageID, nil
}

// messageIDDomain returns the domain of the sender address so generated
// Message-IDs match the From header.
func messageIDDomain(from string) string {
	address, err := netmail.ParseAddress(from)
	if err != nil {
		return "localhost"
	}
	if _, domain, found := strings.Cut(address.Address, "@"); found && domain != "" {
		return domain
	}
	return "localhost"
}

// getClient returns the shared SMTP client, creating it on first use.
func (mailer *Mailer) getClient() (*mail.Client, error) {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()

	if mailer.client != nil {
		return mailer.client, nil
	}

	if !mailer.account.Configured() {
		return nil, ErrNotConfigured
	}

	options := []mail.Option{
		mail.WithPort(mailer.account.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(mailer.account.User),
		mail.WithPassword(mailer.account.Password),
	}
	if mailer.account.Secure {
		options = append(options, mail.WithSSL())
	} else {
		options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(mailer.account.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("mailer: failed to create smtp client: %w", err)
	}

	mailer.logger.Info("smtp_client_initialized",
		slog.String("host", mailer.account.Host),
		slog.Int("port", mailer.account.Port),
	)

	mailer.client = client
	return client, nil
}
