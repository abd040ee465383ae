package model

import "strings"

type EscalationMethod string

const (
	EscalationMethodEmail    EscalationMethod = "email"
	EscalationMethodWhatsApp EscalationMethod = "whatsapp"
	EscalationMethodBoth     EscalationMethod = "both"
)

func (m EscalationMethod) UsesEmail() bool {
	return m == EscalationMethodEmail || m == EscalationMethodBoth
}

func (m EscalationMethod) UsesWhatsApp() bool {
	return m == EscalationMethodWhatsApp || m == EscalationMethodBoth
}

type OpeningHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}

type Product struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
	Category    string `json:"category,omitempty"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type EscalationSettings struct {
	Enabled        bool             `json:"enabled"`
	Method         EscalationMethod `json:"method,omitempty"`
	Email          string           `json:"email,omitempty"`
	WhatsAppNumber string           `json:"whatsapp_number,omitempty"`
}

// BusinessProfile is the merchant's knowledge base. It is read-only for the duration of a run.
type BusinessProfile struct {
	Name                 string                  `json:"business_name,omitempty"`
	Description          string                  `json:"description,omitempty"`
	Phone                string                  `json:"phone,omitempty"`
	Email                string                  `json:"email,omitempty"`
	Website              string                  `json:"website,omitempty"`
	Address              string                  `json:"address,omitempty"`
	OpeningHours         map[string]OpeningHours `json:"opening_hours,omitempty"`
	Products             []Product               `json:"products,omitempty"`
	PaymentMethods       []string                `json:"payment_methods,omitempty"`
	OrderingInstructions string                  `json:"ordering_instructions,omitempty"`
	FAQs                 []FAQ                   `json:"faqs,omitempty"`
	DefaultLanguage      string                  `json:"default_language,omitempty"`
	Escalation           EscalationSettings      `json:"escalation,omitempty"`
}

// IsEmpty reports whether the profile carries no business information.
func (p BusinessProfile) IsEmpty() bool {
	return p.Name == "" &&
		p.Description == "" &&
		p.Phone == "" &&
		p.Email == "" &&
		p.Website == "" &&
		p.Address == "" &&
		len(p.OpeningHours) == 0 &&
		len(p.Products) == 0 &&
		len(p.PaymentMethods) == 0 &&
		p.OrderingInstructions == "" &&
		len(p.FAQs) == 0 &&
		p.DefaultLanguage == "" &&
		!p.Escalation.Enabled
}

// Language returns the lower-cased default language, "en" when unset.
func (p BusinessProfile) Language() string {
	lang := strings.ToLower(strings.TrimSpace(p.DefaultLanguage))
	if lang == "" {
		return "en"
	}
	return lang
}

// DisplayName returns the business name or a neutral fallback.
func (p BusinessProfile) DisplayName() string {
	if p.Name == "" {
		return "our business"
	}
	return p.Name
}
