package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agamariel/crowdfund/internal/metrics"
)

var (
	// ErrTimeout - провайдер не ответил вовремя. Вызов можно повторить.
	ErrTimeout = errors.New("provider call timed out")
	// ErrTransferRejected - провайдер ответил, что перевод не выполнен.
	ErrTransferRejected = errors.New("provider rejected transfer")
	// ErrNotFound - провайдер не знает транзакцию или счёт.
	ErrNotFound = errors.New("provider resource not found")
)

// RateLimitError содержит паузу, которую рекомендует провайдер.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// StatusError - неожиданный HTTP-статус от провайдера.
type StatusError struct {
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected provider status: %d", e.Code)
}

// TransferResult - ответ на перевод или выплату.
type TransferResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message,omitempty"`
}

// PaymentIntent - выданный провайдером код оплаты.
type PaymentIntent struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkoutUrl"`
}

type settlementResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	SettledAmount int64  `json:"settledAmount"`
}

// Client - исходящие вызовы платёжного провайдера. Суммы в минорных единицах.
type Client interface {
	TransferToMainAccount(ctx context.Context, accountRef string, amount int64) (*TransferResult, error)
	Cashout(ctx context.Context, amount int64, accountRef, phoneNumber, provider string) (*TransferResult, error)
	SettledAmount(ctx context.Context, accountRef, reference string) (int64, error)
	CreatePaymentIntent(ctx context.Context, accountRef string, amount int64, email string) (*PaymentIntent, error)
}

type HTTPClient struct {
	baseURL        string
	apiKey         string
	mainAccountRef string
	httpClient     *http.Client
}

// NewHTTPClient создаёт HTTP-клиент провайдера с явным таймаутом на каждый вызов.
func NewHTTPClient(baseURL, apiKey, mainAccountRef string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		mainAccountRef: mainAccountRef,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TransferToMainAccount переводит комиссию платформы со счёта кампании на основной счёт.
func (c *HTTPClient) TransferToMainAccount(ctx context.Context, accountRef string, amount int64) (*TransferResult, error) {
	body := map[string]any{
		"destination": c.mainAccountRef,
		"amount":      amount,
	}
	var res TransferResult
	if err := c.do(ctx, "transfer_main", http.MethodPost, accountPath(accountRef, "transfers"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cashout инициирует выплату на мобильный кошелёк или банковский счёт.
func (c *HTTPClient) Cashout(ctx context.Context, amount int64, accountRef, phoneNumber, provider string) (*TransferResult, error) {
	body := map[string]any{
		"amount":      amount,
		"phoneNumber": phoneNumber,
		"provider":    provider,
	}
	var res TransferResult
	if err := c.do(ctx, "cashout", http.MethodPost, accountPath(accountRef, "cashouts"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SettledAmount запрашивает у провайдера подтверждённую сумму транзакции на счёте.
func (c *HTTPClient) SettledAmount(ctx context.Context, accountRef, reference string) (int64, error) {
	var res settlementResponse
	path := accountPath(accountRef, "transactions", reference)
	if err := c.do(ctx, "settled_amount", http.MethodGet, path, nil, &res); err != nil {
		return 0, err
	}
	return res.SettledAmount, nil
}

// CreatePaymentIntent выпускает код оплаты для пожертвования.
func (c *HTTPClient) CreatePaymentIntent(ctx context.Context, accountRef string, amount int64, email string) (*PaymentIntent, error) {
	body := map[string]any{
		"amount": amount,
		"email":  email,
	}
	var res PaymentIntent
	if err := c.do(ctx, "payment_intent", http.MethodPost, accountPath(accountRef, "payment-intents"), body, &res); err != nil {
		return nil, err
	}
	if res.Reference == "" {
		return nil, fmt.Errorf("provider returned empty payment reference")
	}
	return &res, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	defer func() {
		metrics.RecordProviderCall(op, outcome(err))
	}()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return StatusError{Code: resp.StatusCode}
	}
}

func accountPath(accountRef string, parts ...string) string {
	segments := []string{"/v1/accounts", url.PathEscape(accountRef)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable сообщает, что ошибку провайдера стоит повторить позже.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var rl RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se StatusError
	return errors.As(err, &se) && se.Code >= 500
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

func parseRetryAfter(val string) time.Duration {
	if val == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
