package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

const maxProviderMessage = 200

// ChapaConfig configures the Chapa REST client.
type ChapaConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// ChapaGateway talks to the Chapa API with fiber's HTTP client agent.
type ChapaGateway struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
}

// NewChapaGateway creates a new ChapaGateway.
func NewChapaGateway(cfg ChapaConfig) *ChapaGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ChapaGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		timeout:   timeout,
	}
}

type chapaInitializePayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

// chapaResponse is the envelope shared by every Chapa endpoint. Message is
// either a string or a map of field name to messages.
type chapaResponse struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chapaCheckoutData struct {
	CheckoutURL string `json:"checkout_url"`
}

type chapaVerifyData struct {
	Status   string          `json:"status"`
	TxRef    string          `json:"tx_ref"`
	Currency string          `json:"currency"`
	Amount   json.RawMessage `json:"amount"`
}

// InitializePayment opens a hosted checkout session.
func (g *ChapaGateway) InitializePayment(ctx context.Context, req InitializeRequest) (string, error) {
	payload := chapaInitializePayload{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: NormalizePhone(req.PhoneNumber),
		Currency:    req.Currency,
		Amount:      req.Amount.StringFixed(2),
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
	}

	agent := fiber.Post(g.baseURL + "/v1/transaction/initialize").JSON(payload)
	code, resp, err := g.do(ctx, agent)
	if err != nil {
		return "", apperrors.ExternalService("payment initialization failed", err)
	}
	if code < 200 || code >= 300 || !strings.EqualFold(resp.Status, "success") {
		msg := flattenMessage(resp.Message)
		if msg == "" {
			msg = "payment initialization failed"
		}
		log.Printf("Chapa rejected initialization for %s (HTTP %d): %s", req.TxRef, code, msg)
		return "", apperrors.ExternalService(msg, fmt.Errorf("chapa initialize returned HTTP %d", code))
	}

	var data chapaCheckoutData
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.CheckoutURL == "" {
		return "", apperrors.ExternalService("payment provider returned no checkout url", err)
	}
	return data.CheckoutURL, nil
}

// VerifyPayment asks Chapa for the status of txRef. Chapa answers 400/404
// for references it has no completed payment for, which includes sessions the
// customer has not paid yet, so those stay pending. Only an explicit failed
// or cancelled status fails the payment. Any other non-2xx is an error.
func (g *ChapaGateway) VerifyPayment(ctx context.Context, txRef string) (*Verification, error) {
	agent := fiber.Get(g.baseURL + "/v1/transaction/verify/" + url.PathEscape(txRef))
	code, resp, err := g.do(ctx, agent)
	if err != nil {
		return nil, apperrors.ExternalService("payment verification failed", err)
	}

	switch {
	case code == fiber.StatusBadRequest || code == fiber.StatusNotFound:
		return &Verification{TxRef: txRef, Outcome: OutcomePending, RawStatus: resp.Status}, nil
	case code < 200 || code >= 300:
		msg := flattenMessage(resp.Message)
		if msg == "" {
			msg = "payment verification failed"
		}
		return nil, apperrors.ExternalService(msg, fmt.Errorf("chapa verify returned HTTP %d", code))
	}

	var data chapaVerifyData
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, apperrors.ExternalService("payment provider returned an unreadable verification", err)
		}
	}

	v := &Verification{
		TxRef:     txRef,
		RawStatus: data.Status,
		Currency:  data.Currency,
		Outcome:   outcomeOf(resp.Status, data.Status),
	}
	if amount, err := parseAmount(data.Amount); err == nil {
		v.Amount = amount
	}
	return v, nil
}

// do sends the request with the bearer key under the smaller of the
// configured timeout and the context deadline.
func (g *ChapaGateway) do(ctx context.Context, agent *fiber.Agent) (int, chapaResponse, error) {
	var resp chapaResponse
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, resp, err
	}

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		fiber.ReleaseAgent(agent)
		return 0, resp, fmt.Errorf("%w: deadline already passed", ErrTimeout)
	}

	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.secretKey).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if errors.Is(err, fasthttp.ErrTimeout) {
			return code, resp, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return code, resp, err
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil && code >= 200 && code < 300 {
			return code, resp, fmt.Errorf("decode chapa response: %w", err)
		}
	}
	return code, resp, nil
}

func outcomeOf(envelopeStatus, dataStatus string) Outcome {
	status := strings.ToLower(dataStatus)
	switch {
	case status == "failed" || status == "cancelled" || status == "canceled" || status == "expired":
		return OutcomeFailed
	case status == "success" && strings.EqualFold(envelopeStatus, "success"):
		return OutcomeSuccess
	default:
		return OutcomePending
	}
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var amount decimal.Decimal
	if len(raw) == 0 {
		return amount, errors.New("no amount")
	}
	err := amount.UnmarshalJSON(raw)
	return amount, err
}

// flattenMessage turns a provider message (string or field map) into one
// printable line.
func flattenMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return sanitize(text)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var list []string
		if err := json.Unmarshal(fields[k], &list); err == nil {
			parts = append(parts, k+": "+strings.Join(list, ", "))
			continue
		}
		var single string
		if err := json.Unmarshal(fields[k], &single); err == nil {
			parts = append(parts, k+": "+single)
		}
	}
	return sanitize(strings.Join(parts, "; "))
}

func sanitize(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	msg = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, msg)
	if len(msg) > maxProviderMessage {
		cut := maxProviderMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
