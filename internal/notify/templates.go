package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var orderEmailTemplate = template.Must(template.New("order").Parse(`
<h2>New Order/Reservation Request</h2>
<p><strong>Business:</strong> {{.Business}}</p>
<p><strong>Customer Phone:</strong> {{.Customer}}</p>
<p><strong>Order Details:</strong></p>
<div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin: 10px 0;">
    {{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}
</div>
<p><strong>Original Customer Message:</strong></p>
<div style="background-color: #e3f2fd; padding: 15px; border-radius: 5px; margin: 10px 0;">
    {{.Original}}
</div>
<p>Please contact the customer to confirm the order/reservation details.</p>
<hr>
<p><small>This notification was sent automatically by AutoReply.</small></p>
`))

type orderEmailData struct {
	Business string
	Customer string
	Lines    []string
	Original string
}

func orderSubject(business string) string {
	return "New Order/Reservation Request - " + business
}

func renderOrderEmail(business, customer, summary, original string) (string, error) {
	var buf bytes.Buffer
	err := orderEmailTemplate.Execute(&buf, orderEmailData{
		Business: business,
		Customer: customer,
		Lines:    strings.Split(summary, "\n"),
		Original: original,
	})
	if err != nil {
		return "", fmt.Errorf("rendering order email: %w", err)
	}
	return buf.String(), nil
}

func orderWhatsAppText(customer, summary string) string {
	return fmt.Sprintf("🔔 New Order/Reservation Request\n\nCustomer: %s\n\nOrder Details:\n%s\n\nPlease contact the customer to confirm the details.\n\n- AutoReply Auto-Notification",
		customer, summary)
}
