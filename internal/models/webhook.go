package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedEventShape возвращается, когда тело вебхука не соответствует ожидаемой схеме.
var ErrUnrecognizedEventShape = errors.New("unrecognized webhook event shape")

// EventKind - вариант события провайдера.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventPending
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPending:
		return "pending"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unrecognized"
	}
}

// WebhookEvent - разобранное событие провайдера. Поля кроме Kind и Reason
// заполнены только для распознанных событий.
type WebhookEvent struct {
	Kind      EventKind
	Reference string
	Status    string
	Amount    int64
	Currency  string
	Reason    string
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount *struct {
			Value    json.Number `json:"value"`
			Currency string      `json:"currency"`
		} `json:"amount"`
	} `json:"data"`
}

// ParseWebhookEvent разбирает тело вебхука провайдера.
// Для нераспознанной формы возвращается событие EventUnrecognized вместе с ErrUnrecognizedEventShape.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var payload webhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return unrecognized(fmt.Sprintf("invalid json: %v", err))
	}
	if payload.Data == nil {
		return unrecognized("missing data")
	}

	ref := strings.TrimSpace(payload.Data.ID)
	if ref == "" {
		return unrecognized("missing data.id")
	}

	status := strings.TrimSpace(payload.Data.Status)
	if status == "" {
		status = strings.TrimSpace(payload.Event)
	}
	if status == "" {
		return unrecognized("missing status")
	}

	ev := WebhookEvent{
		Kind:      classifyStatus(status),
		Reference: ref,
		Status:    status,
	}

	if a := payload.Data.Amount; a != nil && a.Value != "" {
		v, err := a.Value.Int64()
		if err != nil || v < 0 {
			return unrecognized(fmt.Sprintf("invalid amount %q", a.Value))
		}
		ev.Amount = v
		ev.Currency = a.Currency
	}

	return ev, nil
}

func unrecognized(reason string) (WebhookEvent, error) {
	return WebhookEvent{Kind: EventUnrecognized, Reason: reason},
		fmt.Errorf("%w: %s", ErrUnrecognizedEventShape, reason)
}

// classifyStatus принимает как статус ("completed"), так и тип события ("charge.completed").
func classifyStatus(status string) EventKind {
	s := strings.ToLower(status)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	switch s {
	case "completed", "successful", "success", "succeeded":
		return EventCompleted
	case "failed", "failure", "rejected", "cancelled":
		return EventFailed
	default:
		return EventPending
	}
}

// WebhookAck - ответ провайдеру, подтверждающий приём события.
type WebhookAck struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}
