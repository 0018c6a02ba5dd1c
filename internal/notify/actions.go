package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// The clients below double as dispatcher actions.

func (c *ConversionsClient) Name() string { return "conversion" }

func (c *ConversionsClient) Run(ctx context.Context, o domain.Order) error {
	return c.TrackPurchase(ctx, o)
}

func (h *CRMHook) Name() string { return "crm" }

func (h *CRMHook) Run(ctx context.Context, o domain.Order) error {
	return h.Notify(ctx, o)
}

func (p *LifecyclePublisher) Name() string { return "lifecycle" }

func (p *LifecyclePublisher) Run(ctx context.Context, o domain.Order) error {
	return p.Publish(ctx, o)
}

// InvoiceSource finds the invoice document for a checkout session.
type InvoiceSource interface {
	FetchForSession(ctx context.Context, sessionID string) (Invoice, error)
}

// ConfirmationEmail sends the customer confirmation with the business
// address in BCC and the invoice attached when one can be fetched.
type ConfirmationEmail struct {
	composer *Composer
	sender   Sender
	invoices InvoiceSource
	bcc      []string
	logger   *log.Logger
}

func NewConfirmationEmail(composer *Composer, sender Sender, invoices InvoiceSource, bcc string, logger *log.Logger) *ConfirmationEmail {
	if logger == nil {
		logger = log.Default()
	}
	a := &ConfirmationEmail{composer: composer, sender: sender, invoices: invoices, logger: logger}
	if bcc != "" {
		a.bcc = []string{bcc}
	}
	return a
}

func (a *ConfirmationEmail) Name() string { return "email" }

func (a *ConfirmationEmail) Run(ctx context.Context, o domain.Order) error {
	var attachment *Attachment
	if a.invoices != nil {
		inv, err := a.invoices.FetchForSession(ctx, o.CheckoutSessionID)
		switch {
		case err == nil:
			name := "factura.pdf"
			if inv.Number != "" {
				name = fmt.Sprintf("factura-%s.pdf", inv.Number)
			}
			attachment = &Attachment{Name: name, Data: inv.PDF}
		case errors.Is(err, ErrNoInvoice):
		default:
			a.logger.Printf("WARN: invoice unavailable order_id=%s session_id=%s err=%v", o.ID, o.CheckoutSessionID, err)
		}
	}

	email, err := a.composer.Confirmation(o, attachment != nil)
	if err != nil {
		return err
	}
	email.Bcc = a.bcc
	if attachment != nil {
		email.Attachments = append(email.Attachments, *attachment)
	}
	return a.sender.Send(ctx, email)
}
