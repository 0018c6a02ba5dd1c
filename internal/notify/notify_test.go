package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

func confirmedOrder() domain.Order {
	created := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:                "0b9d2f8e-3d4a-4c1e-9d55-0f2a1c7b9e01",
		ProductID:         "stand-google",
		ProductName:       "Expositor NFC Google",
		Quantity:          2,
		Price:             decimal.RequireFromString("79.80"),
		DiscountAmount:    decimal.RequireFromString("8.00"),
		VoucherCode:       "WELCOME10",
		CustomerEmail:     "  Owner@Example.com ",
		CustomerPhone:     "+34 600 000 000",
		BusinessName:      "Cafe Sol",
		BusinessPostcode:  "28001",
		BusinessCountry:   "España",
		DeviceColors:      json.RawMessage(`[{"color":"black"},{"color":"white"}]`),
		Attribution:       domain.Attribution{Source: "google", Campaign: "spring"},
		PaymentIntentID:   "pi_1",
		CheckoutSessionID: "cs_1",
		Status:            domain.OrderStatusConfirmed,
		CreatedAt:         created,
		UpdatedAt:         created.Add(time.Minute),
	}
}

func TestCountryCode(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Spain":    "ES",
		" españa ": "ES",
		"Francia":  "FR",
		"Italy":    "IT",
		"Portugal": "PT",
		"Germany":  "DE",
		"nl":       "NL",
		"Atlantis": "",
	}
	for in, want := range tests {
		if got := CountryCode(in); got != want {
			t.Errorf("CountryCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConversionsClient_TrackPurchase(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	var payload purchaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	now := time.Date(2025, 4, 1, 12, 5, 0, 0, time.UTC)
	c := NewConversionsClient(ConversionsConfig{BaseURL: srv.URL, PixelID: "123", Token: "tok"}, clock.NewFixed(now))
	if err := c.Run(context.Background(), confirmedOrder()); err != nil {
		t.Fatalf("track purchase: %v", err)
	}

	if gotPath != "/v19.0/123/events" || gotQuery != "" {
		t.Fatalf("unexpected request path=%s query=%q", gotPath, gotQuery)
	}
	if payload.AccessToken != "tok" {
		t.Fatalf("expected access token in body, got %q", payload.AccessToken)
	}
	if len(payload.Data) != 1 {
		t.Fatalf("expected one event, got %d", len(payload.Data))
	}
	ev := payload.Data[0]
	if ev.EventName != "Purchase" || ev.EventID != confirmedOrder().ID || ev.EventTime != now.Unix() {
		t.Fatalf("unexpected event header: %+v", ev)
	}
	if ev.CustomData.Value.String() != "71.80" || ev.CustomData.Currency != "EUR" {
		t.Fatalf("unexpected custom data: %+v", ev.CustomData)
	}
	if len(ev.UserData.Email) != 1 || ev.UserData.Email[0] != hashIdentifier("owner@example.com") {
		t.Fatalf("expected normalized email hash, got %v", ev.UserData.Email)
	}
	if len(ev.UserData.Country) != 1 || ev.UserData.Country[0] != hashIdentifier("es") {
		t.Fatalf("expected hashed country, got %v", ev.UserData.Country)
	}
}

func TestConversionsClient_TransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachable := srv.URL
	srv.Close()

	const token = "SECRET-TOKEN-123"
	c := NewConversionsClient(ConversionsConfig{BaseURL: unreachable, PixelID: "px", Token: token}, clock.NewSystem())
	err := c.TrackPurchase(context.Background(), confirmedOrder())
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("access token leaked into error: %v", err)
	}
}

func TestConversionsClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewConversionsClient(ConversionsConfig{BaseURL: srv.URL, PixelID: "1", Token: "bad"}, clock.NewSystem())
	err := c.TrackPurchase(context.Background(), confirmedOrder())
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestCRMHook_PostsSnapshot(t *testing.T) {
	t.Parallel()

	var got Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := NewCRMHook(srv.URL).Run(context.Background(), confirmedOrder()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.OrderID != confirmedOrder().ID || got.UTMSource != "google" || got.UTMCampaign != "spring" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Total.String() != "71.80" || got.Status != "confirmed" {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if string(got.StandColors) != `[{"color":"black"},{"color":"white"}]` {
		t.Fatalf("unexpected stand colors: %s", got.StandColors)
	}
}

func TestCRMHook_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewCRMHook(srv.URL).Notify(context.Background(), confirmedOrder()); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func newStripeServer(t *testing.T, sessionInvoice string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v1/checkout/sessions/cs_1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"cs_1","invoice":` + sessionInvoice + `}`))
	})
	mux.HandleFunc("/v1/invoices/in_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"in_1","number":"J5S-0001","invoice_pdf":"` + srv.URL + `/files/in_1.pdf"}`))
	})
	mux.HandleFunc("/files/in_1.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 invoice"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestInvoiceFetcher(t *testing.T) {
	t.Parallel()

	t.Run("session with invoice id", func(t *testing.T) {
		srv := newStripeServer(t, `"in_1"`)
		inv, err := NewInvoiceFetcher(srv.URL, "sk_test").FetchForSession(context.Background(), "cs_1")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if inv.Number != "J5S-0001" || string(inv.PDF) != "%PDF-1.4 invoice" {
			t.Fatalf("unexpected invoice: %+v", inv)
		}
	})

	t.Run("expanded invoice object", func(t *testing.T) {
		srv := newStripeServer(t, `{"id":"in_1","object":"invoice"}`)
		if _, err := NewInvoiceFetcher(srv.URL, "sk_test").FetchForSession(context.Background(), "cs_1"); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	})

	t.Run("session without invoice", func(t *testing.T) {
		srv := newStripeServer(t, `null`)
		_, err := NewInvoiceFetcher(srv.URL, "sk_test").FetchForSession(context.Background(), "cs_1")
		if !errors.Is(err, ErrNoInvoice) {
			t.Fatalf("expected ErrNoInvoice, got %v", err)
		}
	})

	t.Run("empty session id", func(t *testing.T) {
		_, err := NewInvoiceFetcher("http://127.0.0.1:1", "sk_test").FetchForSession(context.Background(), "")
		if !errors.Is(err, ErrNoInvoice) {
			t.Fatalf("expected ErrNoInvoice, got %v", err)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		srv := newStripeServer(t, `"in_1"`)
		_, err := NewInvoiceFetcher(srv.URL, "sk_wrong").FetchForSession(context.Background(), "cs_1")
		if err == nil || errors.Is(err, ErrNoInvoice) {
			t.Fatalf("expected request error, got %v", err)
		}
	})
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestLifecyclePublisher(t *testing.T) {
	t.Parallel()

	w := &fakeKafkaWriter{}
	p := newLifecyclePublisherWith(w)
	o := confirmedOrder()
	o.Status = domain.OrderStatusCancelled

	if err := p.Run(context.Background(), o); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != o.ID {
		t.Fatalf("expected one message keyed by order id, got %+v", w.msgs)
	}
	var ev lifecycleEvent
	if err := json.Unmarshal(w.msgs[0].Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "order.cancelled" || ev.Order.OrderID != o.ID {
		t.Fatalf("unexpected event: %+v", ev)
	}

	w.err = errors.New("broker down")
	if err := p.Publish(context.Background(), o); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestComposer_Confirmation(t *testing.T) {
	t.Parallel()

	c, err := NewComposer("")
	if err != nil {
		t.Fatalf("new composer: %v", err)
	}

	t.Run("spanish for Spain", func(t *testing.T) {
		e, err := c.Confirmation(confirmedOrder(), true)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if e.Subject != "Confirmación de tu pedido - Just5Stars" {
			t.Fatalf("unexpected subject %q", e.Subject)
		}
		for _, want := range []string{
			"Precio final: €71.80",
			"Código de descuento aplicado: WELCOME10",
			"Expositor 1: Color black",
			"Expositor 2: Color white",
			"Adjuntamos la factura",
		} {
			if !strings.Contains(e.Text, want) {
				t.Errorf("text missing %q:\n%s", want, e.Text)
			}
		}
		if !strings.Contains(e.HTML, "Expositor 2:") {
			t.Errorf("html missing stands")
		}
		if len(e.To) != 1 || e.To[0] != confirmedOrder().CustomerEmail {
			t.Fatalf("unexpected recipients %v", e.To)
		}
	})

	t.Run("english for other known countries", func(t *testing.T) {
		o := confirmedOrder()
		o.BusinessCountry = "France"
		o.VoucherCode = ""
		e, err := c.Confirmation(o, false)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if !strings.Contains(e.Text, "Final price: €71.80") || strings.Contains(e.Text, "Discount code") {
			t.Fatalf("unexpected english text:\n%s", e.Text)
		}
		if !strings.Contains(e.Text, "available once the payment") {
			t.Fatalf("expected invoice pending note:\n%s", e.Text)
		}
	})

	t.Run("default locale for unknown country", func(t *testing.T) {
		if got := c.LocaleFor("Atlantis"); got != "es" {
			t.Fatalf("expected es, got %s", got)
		}
	})

	t.Run("html escapes customer input", func(t *testing.T) {
		o := confirmedOrder()
		o.BusinessName = "<script>x</script>"
		e, err := c.Confirmation(o, false)
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		if strings.Contains(e.HTML, "<script>") {
			t.Fatalf("expected escaped business name")
		}
	})
}

func TestNewComposer_UnknownDefaultLocale(t *testing.T) {
	t.Parallel()

	if _, err := NewComposer("de"); err == nil {
		t.Fatalf("expected error for missing locale")
	}
}

func TestSMTPMailer_Message(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 465, From: "info@just5stars.com"})
	msg, err := m.message(Email{
		To:          []string{"owner@example.com"},
		Bcc:         []string{"info@just5stars.com"},
		Subject:     "Hola",
		Text:        "texto",
		HTML:        "<p>texto</p>",
		Attachments: []Attachment{{Name: "factura.pdf", Data: []byte("%PDF")}},
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	rcpts, err := msg.GetRecipients()
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(rcpts) != 2 {
		t.Fatalf("expected customer and bcc recipients, got %v", rcpts)
	}
	if files := msg.GetAttachments(); len(files) != 1 || files[0].Name != "factura.pdf" {
		t.Fatalf("expected invoice attachment, got %+v", files)
	}

	if _, err := m.message(Email{To: []string{"not an address"}}); err == nil {
		t.Fatalf("expected invalid address error")
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (f *fakeSender) Send(_ context.Context, e Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return f.err
}

type fakeInvoices struct {
	inv Invoice
	err error
}

func (f fakeInvoices) FetchForSession(context.Context, string) (Invoice, error) {
	return f.inv, f.err
}

func TestConfirmationEmail_Run(t *testing.T) {
	t.Parallel()

	composer, err := NewComposer("es")
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	quiet := log.New(io.Discard, "", 0)

	tests := []struct {
		name       string
		invoices   InvoiceSource
		wantAttach int
	}{
		{name: "invoice attached", invoices: fakeInvoices{inv: Invoice{Number: "J5S-1", PDF: []byte("%PDF")}}, wantAttach: 1},
		{name: "no invoice", invoices: fakeInvoices{err: ErrNoInvoice}},
		{name: "invoice lookup failure still sends", invoices: fakeInvoices{err: errors.New("timeout")}},
		{name: "no invoice source", invoices: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			a := NewConfirmationEmail(composer, sender, tt.invoices, "info@just5stars.com", quiet)
			if err := a.Run(context.Background(), confirmedOrder()); err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(sender.sent) != 1 {
				t.Fatalf("expected one email, got %d", len(sender.sent))
			}
			e := sender.sent[0]
			if len(e.Bcc) != 1 || e.Bcc[0] != "info@just5stars.com" {
				t.Fatalf("expected business bcc, got %v", e.Bcc)
			}
			if len(e.Attachments) != tt.wantAttach {
				t.Fatalf("expected %d attachments, got %d", tt.wantAttach, len(e.Attachments))
			}
			if tt.wantAttach == 1 && e.Attachments[0].Name != "factura-J5S-1.pdf" {
				t.Fatalf("unexpected attachment name %q", e.Attachments[0].Name)
			}
		})
	}

	t.Run("send failure is returned", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("smtp down")}
		a := NewConfirmationEmail(composer, sender, nil, "", quiet)
		if err := a.Run(context.Background(), confirmedOrder()); err == nil {
			t.Fatalf("expected error")
		}
	})
}
