package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"autoreply.app/relay/internal/model"
)

var ErrNoRecipient = errors.New("no notification recipient configured")

type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// TextSender sends a WhatsApp text from a phone number id.
type TextSender interface {
	SendText(ctx context.Context, phoneNumberID, to, body string) error
}

type Config struct {
	// SenderChannelID overrides the merchant's own channel as the WhatsApp sender.
	SenderChannelID string
	// RPS caps outbound notifications per second across merchants. Zero disables the cap.
	RPS float64
}

// Notifier tells merchants about captured orders by email, WhatsApp or both.
// Either transport may be nil when not configured.
type Notifier struct {
	mailer  Mailer
	sender  TextSender
	cfg     Config
	limiter *rate.Limiter
}

func New(mailer Mailer, sender TextSender, cfg Config) *Notifier {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Notifier{mailer: mailer, sender: sender, cfg: cfg, limiter: limiter}
}

// NotifyMerchant sends every notification the merchant's escalation method asks for.
// One failing transport does not stop the other.
func (n *Notifier) NotifyMerchant(ctx context.Context, note model.MerchantNotification) error {
	settings := note.Profile.Escalation
	business := note.Profile.Name
	if business == "" {
		business = "Your Business"
	}

	var (
		errs []error
		sent int
	)

	if note.Method.UsesEmail() && settings.Email != "" {
		if err := n.sendEmail(ctx, business, settings.Email, note); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			sent++
		}
	}

	if note.Method.UsesWhatsApp() && settings.WhatsAppNumber != "" {
		if err := n.sendWhatsApp(ctx, settings.WhatsAppNumber, note); err != nil {
			errs = append(errs, fmt.Errorf("whatsapp: %w", err))
		} else {
			sent++
		}
	}

	if sent == 0 && len(errs) == 0 {
		return fmt.Errorf("%w (method=%s)", ErrNoRecipient, note.Method)
	}
	return errors.Join(errs...)
}

func (n *Notifier) sendEmail(ctx context.Context, business, to string, note model.MerchantNotification) error {
	if n.mailer == nil {
		return ErrEmailNotConfigured
	}
	html, err := renderOrderEmail(business, note.CounterpartyID, note.OrderSummary, note.OriginalMessage)
	if err != nil {
		return err
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if err := n.mailer.Send(ctx, Email{To: []string{to}, Subject: orderSubject(business), HTML: html}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "order notification email sent", "to", to)
	return nil
}

func (n *Notifier) sendWhatsApp(ctx context.Context, to string, note model.MerchantNotification) error {
	if n.sender == nil {
		return errors.New("whatsapp sender not configured")
	}
	from := n.cfg.SenderChannelID
	if from == "" {
		from = note.ChannelID
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if err := n.sender.SendText(ctx, from, to, orderWhatsAppText(note.CounterpartyID, note.OrderSummary)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "order notification whatsapp sent", "to", to)
	return nil
}
