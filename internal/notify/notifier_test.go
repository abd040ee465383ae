package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/notify"
)

type fakeMailer struct {
	sent []notify.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email notify.Email) error {
	f.sent = append(f.sent, email)
	return f.err
}

type sentText struct {
	From, To, Body string
}

type fakeSender struct {
	sent []sentText
	err  error
}

func (f *fakeSender) SendText(_ context.Context, from, to, body string) error {
	f.sent = append(f.sent, sentText{From: from, To: to, Body: body})
	return f.err
}

var _ = Describe("Notifier", func() {
	var (
		mailer *fakeMailer
		sender *fakeSender
		n      *notify.Notifier
		note   model.MerchantNotification
	)

	BeforeEach(func() {
		mailer = &fakeMailer{}
		sender = &fakeSender{}
		n = notify.New(mailer, sender, notify.Config{})
		note = model.MerchantNotification{
			Profile: model.BusinessProfile{
				Name: "Kopi Kita",
				Escalation: model.EscalationSettings{
					Enabled:        true,
					Email:          "owner@kopikita.test",
					WhatsAppNumber: "628999",
				},
			},
			ChannelID:       "1098",
			CounterpartyID:  "628111",
			OrderSummary:    "2x Kopi Susu\nPickup 3pm",
			OriginalMessage: "mau pesan 2 kopi susu <ambil jam 3>",
			Method:          model.EscalationMethodEmail,
		}
	})

	It("emails the owner with the order and original message", func() {
		Expect(n.NotifyMerchant(context.Background(), note)).To(Succeed())

		Expect(mailer.sent).To(HaveLen(1))
		email := mailer.sent[0]
		Expect(email.To).To(Equal([]string{"owner@kopikita.test"}))
		Expect(email.Subject).To(Equal("New Order/Reservation Request - Kopi Kita"))
		Expect(email.HTML).To(ContainSubstring("628111"))
		Expect(email.HTML).To(ContainSubstring("2x Kopi Susu<br>Pickup 3pm"))
		Expect(email.HTML).To(ContainSubstring("&lt;ambil jam 3&gt;"))
		Expect(sender.sent).To(BeEmpty())
	})

	It("sends a WhatsApp text from the merchant's channel", func() {
		note.Method = model.EscalationMethodWhatsApp

		Expect(n.NotifyMerchant(context.Background(), note)).To(Succeed())

		Expect(mailer.sent).To(BeEmpty())
		Expect(sender.sent).To(HaveLen(1))
		Expect(sender.sent[0].From).To(Equal("1098"))
		Expect(sender.sent[0].To).To(Equal("628999"))
		Expect(sender.sent[0].Body).To(HavePrefix("🔔 New Order/Reservation Request"))
		Expect(sender.sent[0].Body).To(ContainSubstring("Customer: 628111"))
		Expect(sender.sent[0].Body).To(ContainSubstring("Order Details:\n2x Kopi Susu\nPickup 3pm"))
	})

	It("uses both transports and keeps going when one fails", func() {
		note.Method = model.EscalationMethodBoth
		mailer.err = errors.New("resend down")

		err := n.NotifyMerchant(context.Background(), note)

		Expect(err).To(MatchError(ContainSubstring("resend down")))
		Expect(sender.sent).To(HaveLen(1))
	})

	It("reports when no recipient is configured", func() {
		note.Profile.Escalation.Email = ""

		Expect(n.NotifyMerchant(context.Background(), note)).To(MatchError(notify.ErrNoRecipient))
	})

	It("honours a configured sender channel", func() {
		n = notify.New(mailer, sender, notify.Config{SenderChannelID: "ops-1"})
		note.Method = model.EscalationMethodWhatsApp

		Expect(n.NotifyMerchant(context.Background(), note)).To(Succeed())
		Expect(sender.sent[0].From).To(Equal("ops-1"))
	})
})

var _ = Describe("ResendMailer", func() {
	It("posts the email to the Resend API", func() {
		var body map[string]any
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/emails"))
			auth = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			_, _ = w.Write([]byte(`{"id":"em_1"}`))
		}))
		DeferCleanup(srv.Close)

		m, err := notify.NewResendMailer(notify.ResendConfig{BaseURL: srv.URL, APIKey: "re_key", From: "support@autoreply.app"})
		Expect(err).NotTo(HaveOccurred())
		err = m.Send(context.Background(), notify.Email{To: []string{"o@x.test"}, Subject: "s", HTML: "<p>h</p>"})

		Expect(err).NotTo(HaveOccurred())
		Expect(auth).To(Equal("Bearer re_key"))
		Expect(body).To(HaveKeyWithValue("from", "support@autoreply.app"))
		Expect(body).To(HaveKeyWithValue("subject", "s"))
		Expect(body["to"]).To(ConsistOf("o@x.test"))
		Expect(body).To(HaveKeyWithValue("html", "<p>h</p>"))
	})

	It("keeps a path prefix on the base URL", func() {
		var path string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"em_2"}`))
		}))
		DeferCleanup(srv.Close)

		m, err := notify.NewResendMailer(notify.ResendConfig{BaseURL: srv.URL + "/proxy/", APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Send(context.Background(), notify.Email{To: []string{"a@b.c"}})).To(Succeed())
		Expect(path).To(Equal("/proxy/emails"))
	})

	It("rejects an unparseable base URL", func() {
		_, err := notify.NewResendMailer(notify.ResendConfig{BaseURL: "http://[::1", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("resend base url")))
	})

	It("fails without an API key", func() {
		m, err := notify.NewResendMailer(notify.ResendConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Send(context.Background(), notify.Email{})).To(MatchError(notify.ErrEmailNotConfigured))
	})

	It("surfaces non-2xx responses", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		DeferCleanup(srv.Close)

		m, err := notify.NewResendMailer(notify.ResendConfig{BaseURL: srv.URL, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Send(context.Background(), notify.Email{To: []string{"a@b.c"}})).To(MatchError(ContainSubstring("422")))
	})
})
