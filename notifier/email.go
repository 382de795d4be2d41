package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
)

// ChannelEmail is the channel name of the SMTP sink.
const ChannelEmail = "email"

// EmailChannel sends status mails through an SMTP relay. STARTTLS is used
// when the relay offers it; authentication only runs over the upgraded
// connection.
type EmailChannel struct {
	addr string
	host string
	auth smtp.Auth
	from string
	to   []string
}

// NewEmailChannel creates an SMTP delivery channel.
//
// Parameters:
// - addr: the relay address as host:port.
// - username: the optional relay username; empty disables authentication.
// - password: the relay password.
// - from: the sender address.
// - to: the recipient addresses.
//
// Returns:
// - *EmailChannel: the new channel instance.
func NewEmailChannel(addr, username, password, from string, to []string) *EmailChannel {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &EmailChannel{
		addr: addr,
		host: host,
		auth: auth,
		from: from,
		to:   to,
	}
}

// Name returns the channel identifier.
func (c *EmailChannel) Name() string { return ChannelEmail }

// Deliver runs one SMTP conversation for the event. The context deadline
// bounds the dial and, via the connection deadline, the whole exchange.
func (c *EmailChannel) Deliver(ctx context.Context, event *types.NotificationEvent) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return errors.Wrap(err, "failed to reach smtp relay")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "smtp handshake failed")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
			return errors.Wrap(err, "smtp starttls failed")
		}
	}
	if c.auth != nil {
		if err := client.Auth(c.auth); err != nil {
			return errors.Wrap(err, "smtp auth failed")
		}
	}

	if err := client.Mail(c.from); err != nil {
		return errors.Wrap(err, "smtp sender rejected")
	}
	for _, recipient := range c.to {
		if err := client.Rcpt(recipient); err != nil {
			return errors.Wrapf(err, "smtp recipient %s rejected", recipient)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "smtp data command failed")
	}
	if _, err := writer.Write(c.message(event)); err != nil {
		return errors.Wrap(err, "smtp body write failed")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "smtp delivery rejected")
	}

	return client.Quit()
}

func (c *EmailChannel) message(event *types.NotificationEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.to, ", "))
	fmt.Fprintf(&b, "Subject: Transaction %s %s\r\n", event.TransactionID, event.Status)
	fmt.Fprintf(&b, "Date: %s\r\n", event.At.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Transaction %s changed to %s at %s.\r\n",
		event.TransactionID, event.Status, event.At.Format(time.RFC3339))
	if event.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\r\n", event.LastError)
	}
	return []byte(b.String())
}
