package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/angelmondragon/shopflow-backend/pkg/email"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
)

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html><body style="font-family:Helvetica,Arial,sans-serif;color:#222">
<h2>{{.Heading}}</h2>
<p>{{.Intro}}</p>
{{if .Items}}<table cellpadding="6" style="border-collapse:collapse">
<tr><th align="left">Item</th><th align="left">Variant</th><th align="right">Qty</th><th align="right">Total</th></tr>
{{range .Items}}<tr><td>{{.ProductName}}</td><td>{{.Size}} / {{.ColorName}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.LineTotal.StringFixed 2}}</td></tr>
{{end}}</table>{{end}}
{{range .Lines}}<p>{{.}}</p>
{{end}}<p><a href="{{.Link}}">View your order</a></p>
</body></html>`))

type view struct {
	Heading string
	Intro   string
	Items   []payloads.OrderItemLine
	Lines   []string
	Link    string
}

// Renderer turns order events into customer e-mails.
type Renderer struct {
	storefrontURL string
}

func NewRenderer(storefrontURL string) *Renderer {
	return &Renderer{storefrontURL: strings.TrimRight(strings.TrimSpace(storefrontURL), "/")}
}

func (r *Renderer) orderLink(orderID fmt.Stringer) string {
	return fmt.Sprintf("%s/orders/%s", r.storefrontURL, orderID)
}

func (r *Renderer) OrderCreated(evt payloads.OrderCreatedEvent) (email.Message, error) {
	lines := []string{
		"Subtotal: " + evt.Subtotal.StringFixed(2),
		"Delivery: " + evt.DeliveryCost.StringFixed(2),
	}
	if evt.DiscountAmount.IsPositive() {
		lines = append(lines, "Discount: -"+evt.DiscountAmount.StringFixed(2))
	}
	lines = append(lines,
		"Total: "+evt.TotalAmount.StringFixed(2),
		fmt.Sprintf("Estimated delivery in %d days.", evt.DeliveryDays),
	)
	if evt.PaymentMethod == enums.PaymentMethodCOD {
		lines = append(lines, "Please have "+evt.TotalAmount.StringFixed(2)+" ready in cash on delivery.")
	}
	return r.render(evt.CustomerEmail, "Order "+evt.OrderNumber+" received", string(enums.EventOrderCreated), view{
		Heading: "Thanks for your order",
		Intro:   "We received order " + evt.OrderNumber + ".",
		Items:   evt.Items,
		Lines:   lines,
		Link:    r.orderLink(evt.OrderID),
	})
}

// StatusChanged renders an update for the statuses a customer cares about. It
// returns false for the others.
func (r *Renderer) StatusChanged(evt payloads.OrderStatusChangedEvent) (email.Message, bool, error) {
	v := view{Link: r.orderLink(evt.OrderID)}
	var subject string
	switch evt.To {
	case enums.OrderStatusConfirmed:
		subject = "Order " + evt.OrderNumber + " confirmed"
		v.Heading = "Your order is confirmed"
		v.Intro = "We are preparing order " + evt.OrderNumber + "."
	case enums.OrderStatusShipped:
		subject = "Order " + evt.OrderNumber + " shipped"
		v.Heading = "Your order is on its way"
		v.Intro = "Order " + evt.OrderNumber + " has shipped."
		if evt.Carrier != nil && *evt.Carrier != "" {
			v.Lines = append(v.Lines, "Carrier: "+*evt.Carrier)
		}
		if evt.TrackingNumber != nil && *evt.TrackingNumber != "" {
			v.Lines = append(v.Lines, "Tracking number: "+*evt.TrackingNumber)
		}
	case enums.OrderStatusOutForDelivery:
		subject = "Order " + evt.OrderNumber + " out for delivery"
		v.Heading = "Arriving today"
		v.Intro = "Order " + evt.OrderNumber + " is out for delivery."
	case enums.OrderStatusDelivered:
		subject = "Order " + evt.OrderNumber + " delivered"
		v.Heading = "Delivered"
		v.Intro = "Order " + evt.OrderNumber + " was delivered."
	default:
		return email.Message{}, false, nil
	}
	if evt.Notes != "" {
		v.Lines = append(v.Lines, evt.Notes)
	}
	msg, err := r.render(evt.CustomerEmail, subject, string(enums.EventOrderStatusChanged), v)
	return msg, true, err
}

func (r *Renderer) OrderCancelled(evt payloads.OrderCancelledEvent) (email.Message, error) {
	v := view{
		Heading: "Order cancelled",
		Intro:   "Order " + evt.OrderNumber + " was cancelled.",
		Link:    r.orderLink(evt.OrderID),
	}
	if evt.Reason != "" {
		v.Lines = append(v.Lines, "Reason: "+evt.Reason)
	}
	return r.render(evt.CustomerEmail, "Order "+evt.OrderNumber+" cancelled", string(enums.EventOrderCancelled), v)
}

func (r *Renderer) render(to, subject, category string, v view) (email.Message, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return email.Message{}, fmt.Errorf("render %s: %w", category, err)
	}
	text := []string{v.Heading, v.Intro}
	text = append(text, v.Lines...)
	text = append(text, v.Link)
	return email.Message{
		To:       to,
		Subject:  subject,
		HTMLBody: buf.String(),
		TextBody: strings.Join(text, "\n"),
		Category: category,
	}, nil
}
