package brain

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"autoreply.app/relay/internal/model"
)

const (
	historyWindow      = 10
	noBusinessInfoText = "No business information available."
)

const defaultResponseTemplate = `You are a helpful customer service assistant for %s.

Your role:
- Answer using the business information below
- Be friendly, accurate and concise
- If the information does not cover the question, politely say a team member will follow up
- Never invent prices, products or opening hours`

var weekdayOrder = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var languageNames = map[string]string{
	"id": "Indonesian",
	"ms": "Malay",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"pt": "Portuguese",
	"it": "Italian",
	"nl": "Dutch",
	"ar": "Arabic",
	"hi": "Hindi",
	"zh": "Chinese",
	"ja": "Japanese",
}

// buildResponsePrompt assembles the single instruction block for a reply. A custom system
// prompt replaces the default template; profile, tone, history and message are always appended.
func buildResponsePrompt(state *model.ConversationState, settings GenerationSettings) string {
	profile := state.Profile()

	var sb strings.Builder
	if state.AIConfig != nil && state.AIConfig.CustomSystemPrompt != nil && strings.TrimSpace(*state.AIConfig.CustomSystemPrompt) != "" {
		sb.WriteString(strings.TrimSpace(*state.AIConfig.CustomSystemPrompt))
	} else {
		sb.WriteString(fmt.Sprintf(defaultResponseTemplate, profile.DisplayName()))
	}

	sb.WriteString("\n\n")
	sb.WriteString(renderProfile(profile))

	sb.WriteString("\n\nTone: ")
	sb.WriteString(settings.ToneHint)

	if hint := languageHint(profile); hint != "" {
		sb.WriteString("\n")
		sb.WriteString(hint)
	}

	if recent := lastTurns(state.History, historyWindow); len(recent) > 0 {
		sb.WriteString("\n\nRecent conversation:\n")
		sb.WriteString(formatHistory(recent))
	}

	sb.WriteString("\n\nCurrent customer message: ")
	sb.WriteString(state.MessageText)

	return sb.String()
}

// renderProfile renders each section only when present.
func renderProfile(p model.BusinessProfile) string {
	if p.IsEmpty() {
		return noBusinessInfoText
	}

	var sb strings.Builder
	sb.WriteString("Business Information:")
	writeField(&sb, "Name", p.Name)
	writeField(&sb, "Description", p.Description)
	writeField(&sb, "Phone", p.Phone)
	writeField(&sb, "Email", p.Email)
	writeField(&sb, "Website", p.Website)
	writeField(&sb, "Address", p.Address)

	if hours := renderHours(p.OpeningHours); hours != "" {
		sb.WriteString("\n\nOpening Hours:\n")
		sb.WriteString(hours)
	}

	if len(p.Products) > 0 {
		sb.WriteString("\n\nProducts and Services:")
		for _, prod := range p.Products {
			sb.WriteString("\n- ")
			sb.WriteString(prod.Name)
			if prod.Category != "" {
				sb.WriteString(" [" + prod.Category + "]")
			}
			if prod.Price != "" {
				sb.WriteString(": " + prod.Price)
			}
			if prod.Description != "" {
				sb.WriteString(" (" + prod.Description + ")")
			}
		}
	}

	if len(p.PaymentMethods) > 0 {
		sb.WriteString("\n\nPayment Methods: ")
		sb.WriteString(strings.Join(p.PaymentMethods, ", "))
	}

	if p.OrderingInstructions != "" {
		sb.WriteString("\n\nHow to Order: ")
		sb.WriteString(p.OrderingInstructions)
	}

	if len(p.FAQs) > 0 {
		sb.WriteString("\n\nFrequently Asked Questions:")
		for _, faq := range p.FAQs {
			if faq.Question == "" || faq.Answer == "" {
				continue
			}
			sb.WriteString("\nQ: " + faq.Question)
			sb.WriteString("\nA: " + faq.Answer)
		}
	}

	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	sb.WriteString("\n- ")
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(value)
}

// renderHours lists weekdays in calendar order, then any other keys sorted.
func renderHours(hours map[string]model.OpeningHours) string {
	if len(hours) == 0 {
		return ""
	}

	seen := make(map[string]bool, len(hours))
	keys := make([]string, 0, len(hours))
	for _, day := range weekdayOrder {
		for k := range hours {
			if strings.EqualFold(k, day) && !seen[k] {
				keys = append(keys, k)
				seen[k] = true
			}
		}
	}
	var rest []string
	for k := range hours {
		if !seen[k] && k != "" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		h := hours[k]
		day := titleDay(k)
		if h.Closed {
			lines = append(lines, day+": Closed")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s - %s", day, h.Open, h.Close))
	}
	return strings.Join(lines, "\n")
}

// titleDay upper-cases the first rune of a day key, so "jumat" and "çarşamba" both
// survive intact.
func titleDay(k string) string {
	r, size := utf8.DecodeRuneInString(k)
	return string(unicode.ToUpper(r)) + strings.ToLower(k[size:])
}

func languageHint(p model.BusinessProfile) string {
	lang := p.Language()
	if lang == "en" || strings.HasPrefix(lang, "en-") || lang == "english" {
		return ""
	}
	name, ok := languageNames[lang]
	if !ok {
		name = p.DefaultLanguage
	}
	return fmt.Sprintf("Language: reply in %s unless the customer clearly writes in another language.", name)
}

func lastTurns(history []model.Turn, k int) []model.Turn {
	if len(history) <= k {
		return history
	}
	return history[len(history)-k:]
}

func formatHistory(turns []model.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := "Customer"
		if t.Direction == model.DirectionOutgoing {
			speaker = "Business"
		}
		lines = append(lines, speaker+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}
