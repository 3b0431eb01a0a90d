package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"moneyboard/internal/core"
)

// ChangeKind names the document set a change touched.
type ChangeKind string

const (
	ChangeTransactions ChangeKind = "transactions"
	ChangeTasks        ChangeKind = "tasks"
)

// ChangeEvent tells consumers that an owner's documents changed for a month.
// It carries no document data; consumers re-read the store.
type ChangeEvent struct {
	OwnerID   string         `json:"ownerId"`
	Month     core.YearMonth `json:"month"`
	Kind      ChangeKind     `json:"kind"`
	Ref       string         `json:"ref,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewChangeEvent(ownerID string, month core.YearMonth, kind ChangeKind, ref string) ChangeEvent {
	return ChangeEvent{
		OwnerID:   ownerID,
		Month:     month,
		Kind:      kind,
		Ref:       ref,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes and checks a message body.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, err
	}
	if e.OwnerID == "" {
		return ChangeEvent{}, fmt.Errorf("change event without owner")
	}
	switch e.Kind {
	case ChangeTransactions, ChangeTasks:
	default:
		return ChangeEvent{}, fmt.Errorf("unknown change kind %q", e.Kind)
	}
	return e, nil
}
