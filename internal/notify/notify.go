package notify

import (
	"context"

	"go.uber.org/zap"
)

type Template string

const (
	TemplateWelcome        Template = "welcome"
	TemplateOTP            Template = "otp"
	TemplateForgotPassword Template = "forgot_password"
	TemplatePaymentVerify  Template = "payment_verify"
	TemplatePaymentSuccess Template = "payment_success"
	TemplatePaymentFailure Template = "payment_failure"
	TemplateOrderShipped   Template = "order_shipped"
	TemplateOrderDelivered Template = "order_delivered"
)

// Message is one templated email.
type Message struct {
	To       string         `json:"to"`
	Template Template       `json:"template"`
	Data     map[string]any `json:"data"`
}

// Notifier delivers templated messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatch sends msg and logs failures. Notification errors never reach the caller.
func Dispatch(ctx context.Context, n Notifier, logger *zap.SugaredLogger, msg Message) {
	if n == nil || msg.To == "" {
		return
	}
	if err := n.Send(ctx, msg); err != nil {
		logger.Errorw("Failed to send notification", "template", msg.Template, "to", msg.To, "err", err)
	}
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}
	n.logger.Infow("Email", "to", msg.To, "subject", subject, "body", body)
	return nil
}
