package notify

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

//go:embed templates.yaml
var catalogYAML []byte

const DefaultLocale = "es"

type catalogEntry struct {
	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
	HTML    string `yaml:"html"`
}

type localeTemplates struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Composer renders the customer confirmation email from the embedded
// catalog.
type Composer struct {
	defaultLocale string
	locales       map[string]localeTemplates
}

func NewComposer(defaultLocale string) (*Composer, error) {
	var catalog map[string]catalogEntry
	if err := yaml.Unmarshal(catalogYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse email catalog: %w", err)
	}
	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}
	if _, ok := catalog[defaultLocale]; !ok {
		return nil, fmt.Errorf("email catalog has no locale %q", defaultLocale)
	}

	funcs := map[string]any{"inc": func(i int) int { return i + 1 }}
	c := &Composer{defaultLocale: defaultLocale, locales: make(map[string]localeTemplates, len(catalog))}
	for locale, entry := range catalog {
		text, err := texttemplate.New(locale + ".text").Funcs(funcs).Parse(entry.Text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", locale, err)
		}
		html, err := htmltemplate.New(locale + ".html").Funcs(funcs).Parse(entry.HTML)
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", locale, err)
		}
		c.locales[locale] = localeTemplates{subject: entry.Subject, text: text, html: html}
	}
	return c, nil
}

// LocaleFor picks Spanish for Spain, English for other recognised countries
// and the default locale when the country is unknown.
func (c *Composer) LocaleFor(country string) string {
	switch code := CountryCode(country); code {
	case "":
		return c.defaultLocale
	case "ES":
		return "es"
	default:
		if _, ok := c.locales["en"]; ok {
			return "en"
		}
		return c.defaultLocale
	}
}

type emailData struct {
	OrderID          string
	ProductName      string
	Quantity         int
	Total            string
	VoucherCode      string
	BusinessName     string
	BusinessPostcode string
	BusinessCountry  string
	Stands           []string
	HasInvoice       bool
}

// Email is a rendered message ready for a Sender.
type Email struct {
	To          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Attachment struct {
	Name string
	Data []byte
}

func (c *Composer) Confirmation(o domain.Order, hasInvoice bool) (Email, error) {
	tpl := c.locales[c.LocaleFor(o.BusinessCountry)]
	data := emailData{
		OrderID:          o.ID,
		ProductName:      o.ProductName,
		Quantity:         o.Quantity,
		Total:            o.Total().StringFixed(2),
		VoucherCode:      o.VoucherCode,
		BusinessName:     o.BusinessName,
		BusinessPostcode: o.BusinessPostcode,
		BusinessCountry:  o.BusinessCountry,
		Stands:           standColors(o.DeviceColors),
		HasInvoice:       hasInvoice,
	}

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render text: %w", err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render html: %w", err)
	}
	return Email{
		To:      []string{o.CustomerEmail},
		Subject: tpl.subject,
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    html.String(),
	}, nil
}

// standColors reads the stored device list. Entries are objects with a
// "color" key; anything else is skipped.
func standColors(raw json.RawMessage) []string {
	var stands []struct {
		Color string `json:"color"`
	}
	if err := json.Unmarshal(raw, &stands); err != nil {
		return nil
	}
	out := make([]string, 0, len(stands))
	for _, s := range stands {
		if s.Color != "" {
			out = append(out, s.Color)
		}
	}
	return out
}
