// Package client holds HTTP clients for services outside the quote engine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/resilience"
	"github.com/boddenberg/orcamento-engine-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

var (
	_ port.EmailSender = (*EmailClient)(nil)
	_ port.EmailSender = (*LogEmailSender)(nil)
)

// emailMessage is the body accepted by the transactional email API.
type emailMessage struct {
	From     string         `json:"from,omitempty"`
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// EmailClient posts templated emails to the transactional email API.
type EmailClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewEmailClient creates a new EmailClient.
func NewEmailClient(httpClient *http.Client, baseURL, apiKey, from string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, bulkhead *resilience.Bulkhead) *EmailClient {
	return &EmailClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   bulkhead,
	}
}

// SendEmail delivers one email rendered from the template named by kind.
func (c *EmailClient) SendEmail(ctx context.Context, to string, kind domain.EmailKind, data map[string]any) error {
	ctx, span := tracer.Start(ctx, "EmailClient.SendEmail")
	defer span.End()
	span.SetAttributes(attribute.String("email.template", string(kind)))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(emailMessage{From: c.from, To: to, Template: string(kind), Data: data})
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/emails", bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				return fmt.Errorf("email API returned status %d", resp.StatusCode)
			default:
				return resilience.Permanent(fmt.Errorf("email API returned status %d", resp.StatusCode))
			}
		})
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return &domain.ErrCircuitOpen{Service: "email"}
		}
		return &domain.ErrExternalService{Service: "email", Err: err}
	}
	return nil
}

// LogEmailSender only logs emails. It is wired when EMAIL_API_URL is unset.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender creates a LogEmailSender.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to string, kind domain.EmailKind, data map[string]any) error {
	s.logger.Info("email (not delivered, no email API configured)",
		zap.String("to", to),
		zap.String("template", string(kind)),
		zap.Any("data", data),
	)
	return nil
}
