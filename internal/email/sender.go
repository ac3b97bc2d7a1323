package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
)

// Message is one outbound email.
type Message struct {
	FromName  string
	FromEmail string
	ToEmail   string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridSender struct {
	client *sendgrid.Client
}

// NewSendgridSender builds the production sender.
func NewSendgridSender(apiKey string) Sender {
	return &sendgridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *sendgridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(msg.FromName, msg.FromEmail)
	to := mail.NewEmail("", msg.ToEmail)
	html := msg.HTML
	if html == "" {
		html = msg.PlainText
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, html)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send")
	}
	if resp.StatusCode >= 400 {
		// The body is kept in the message: the service pattern-matches it to
		// recognize sender-verification and sandbox-recipient rejections.
		body := strings.TrimSpace(resp.Body)
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sendgrid send failed with status %d: %s", resp.StatusCode, body)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": body})
	}
	return nil
}
