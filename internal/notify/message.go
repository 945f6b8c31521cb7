package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"toko-pay/internal/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const notSpecified = "not specified"

// FormatMessage renders ev as an HTML Telegram message. All customer input is escaped.
func FormatMessage(ev Event, currency string) string {
	o := ev.Order
	var b strings.Builder

	switch ev.Kind {
	case PaymentConfirmed:
		fmt.Fprintf(&b, "✅ <b>Payment received</b>\n\n")
		fmt.Fprintf(&b, "📦 Order #%d\n", o.ID)
		fmt.Fprintf(&b, "💰 Amount: %s\n", amount(o.TotalAmount, currency))
		fmt.Fprintf(&b, "👤 Customer: %s, %s", field(o.Name), field(o.Phone))
	default:
		fmt.Fprintf(&b, "🚀 <b>New order #%d</b>\n", o.ID)
		fmt.Fprintf(&b, "👤 Customer: %s\n", field(o.Name))
		fmt.Fprintf(&b, "📞 Phone: %s\n", field(o.Phone))
		fmt.Fprintf(&b, "📍 City: %s\n", field(o.City))
		fmt.Fprintf(&b, "🏤 Warehouse: %s\n", field(o.Warehouse))
		if summary := itemSummary(o); summary != "" {
			fmt.Fprintf(&b, "🛒 Items:\n%s\n", summary)
		}
		fmt.Fprintf(&b, "💰 Total: %s\n", amount(o.TotalAmount, currency))
		b.WriteString(paymentLabel(o.PaymentMethod))
	}
	return b.String()
}

func field(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return notSpecified
	}
	return html.EscapeString(s)
}

func amount(d decimal.Decimal, currency string) string {
	return strings.TrimSpace(d.StringFixed(2) + " " + currency)
}

func paymentLabel(m models.PaymentMethod) string {
	if m == models.PaymentMethodCash {
		return "💵 Cash on delivery"
	}
	return "💳 Online card payment"
}

func itemSummary(o models.Order) string {
	items, err := o.LineItems()
	if err != nil || len(items) == 0 {
		return ""
	}
	lines := lo.Map(items, func(it models.LineItem, _ int) string {
		line := fmt.Sprintf(" • %s × %d", field(it.Name), it.Quantity)
		if it.PackSize != "" {
			line += " (" + html.EscapeString(it.PackSize) + ")"
		}
		return line
	})
	return strings.Join(lines, "\n")
}

type eventPayload struct {
	Type             string          `json:"type"`
	OrderID          uint            `json:"order_id"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    string          `json:"payment_method"`
	InvoiceReference *string         `json:"invoice_reference,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

func newEventPayload(ev Event) eventPayload {
	return eventPayload{
		Type:             string(ev.Kind),
		OrderID:          ev.Order.ID,
		Status:           string(ev.Order.Status),
		TotalAmount:      ev.Order.TotalAmount,
		PaymentMethod:    string(ev.Order.PaymentMethod),
		InvoiceReference: ev.Order.InvoiceReference,
		OccurredAt:       ev.At,
	}
}
