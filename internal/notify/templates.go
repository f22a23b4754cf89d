package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/shopspring/decimal"
)

type mailTemplate struct {
	subject string
	body    *template.Template
}

var funcs = template.FuncMap{
	// money renders minor units as a major-unit amount, 150050 -> "1,500.50".
	"money": func(minor int64) string {
		return formatMoney(minor)
	},
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var templates = map[Template]mailTemplate{
	TemplateWelcome: {
		subject: "Welcome to Cart Ecommerce",
		body: mustParse("welcome", `Hi {{.name}},

Your account is verified. Happy shopping!
`),
	},
	TemplateOTP: {
		subject: "Your verification code",
		body: mustParse("otp", `Hi {{.name}},

Your one-time code is {{.otp}}. It expires in {{.minutes}} minutes.
`),
	},
	TemplateForgotPassword: {
		subject: "Reset your password",
		body: mustParse("forgot_password", `Hi {{.name}},

Use the link below to reset your password. It expires in {{.minutes}} minutes.

{{.link}}
`),
	},
	TemplatePaymentVerify: {
		subject: "Complete your payment",
		body: mustParse("payment_verify", `Hi {{.name}},

Order {{.order_id}} is awaiting payment of NGN {{money .amount}}.
Complete it here: {{.link}}
`),
	},
	TemplatePaymentSuccess: {
		subject: "Payment received",
		body: mustParse("payment_success", `Hi {{.name}},

We received NGN {{money .amount}} for order {{.order_id}}.
{{range .items}}- {{.Name}} x{{.Quantity}}
{{end}}`),
	},
	TemplatePaymentFailure: {
		subject: "Payment failed",
		body: mustParse("payment_failure", `Hi {{.name}},

Payment for order {{.order_id}} failed: {{.reason}}.
You can retry from your orders page.
`),
	},
	TemplateOrderShipped: {
		subject: "Your order has shipped",
		body: mustParse("order_shipped", `Hi {{.name}},

Order {{.order_id}} is on its way.
`),
	},
	TemplateOrderDelivered: {
		subject: "Did you receive your order?",
		body: mustParse("order_delivered", `Hi {{.name}},

Order {{.order_id}} has been marked as delivered. Please confirm you received it.
`),
	},
}

// Render returns the subject and body for msg.
func Render(msg Message) (string, string, error) {
	t, ok := templates[msg.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", msg.Template)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, msg.Data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", msg.Template, err)
	}
	return t.subject, buf.String(), nil
}

func formatMoney(minor int64) string {
	s := decimal.New(minor, -2).StringFixed(2)
	neg := false
	if s[0] == '-' {
		neg, s = true, s[1:]
	}
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i, c := range []byte(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}
