package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/pkg/httpclient"
)

const gatewayName = "notification gateway"

// Notifier delivers verification codes to their recipient.
type Notifier interface {
	SendVerificationCode(ctx context.Context, recipient, code string) error
}

// Message is the request body accepted by the notification gateway.
type Message struct {
	Channel  string            `json:"channel"`
	To       string            `json:"to"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params"`
}

// GatewayNotifier posts messages to an external SMS/mail gateway through a
// circuit breaker, so a failing gateway stops costing request latency.
type GatewayNotifier struct {
	client *httpclient.CircuitBreakerClient
	url    string
	logger *slog.Logger
}

// NewGatewayNotifier creates a notifier posting to url.
func NewGatewayNotifier(client *httpclient.CircuitBreakerClient, url string, logger *slog.Logger) *GatewayNotifier {
	return &GatewayNotifier{client: client, url: url, logger: logger}
}

// SendVerificationCode sends code to recipient by SMS.
func (n *GatewayNotifier) SendVerificationCode(ctx context.Context, recipient, code string) error {
	req, err := httpclient.NewJSONRequest(ctx, n.url, Message{
		Channel:  "sms",
		To:       recipient,
		Template: "verification_code",
		Params:   map[string]string{"code": code},
	})
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}

	resp, err := n.client.Do(ctx, req)
	if err != nil {
		return httpclient.AsUnavailable(err, gatewayName)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return httpclient.ParseResponseError(resp, gatewayName)
	}
	_ = resp.Body.Close()

	n.logger.DebugContext(ctx, "verification code dispatched", slog.String("recipient", Mask(recipient)))
	return nil
}

// LogNotifier writes codes to the log instead of delivering them. It is
// meant for local development where no gateway is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendVerificationCode logs the code at debug level.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, recipient, code string) error {
	n.logger.DebugContext(ctx, "verification code (not delivered)",
		slog.String("recipient", Mask(recipient)),
		slog.String("code", code),
	)
	return nil
}

// Mask hides all but the last four characters of a phone number or address.
func Mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	masked := make([]byte, len(s))
	for i := range masked[:len(s)-4] {
		masked[i] = '*'
	}
	copy(masked[len(s)-4:], s[len(s)-4:])
	return string(masked)
}
