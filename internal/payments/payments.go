package payments

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a payment's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a payment in status from may move to
// status to. Terminal statuses are sticky. A payment being re-reported
// in its current status is allowed so webhook retries stay harmless.
func CanTransition(from, to Status) bool {
	if !from.Known() || !to.Known() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusApproved:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusPending || from == StatusApproved
	case StatusCancelled, StatusFailed:
		return from == StatusPending || from == StatusApproved
	}
	return false
}

// Metadata is attached to a payment at creation and tells the dispatcher
// what to deliver once the payment completes.
type Metadata struct {
	Type   string `json:"type"`
	PackID string `json:"packId,omitempty"`
	ItemID string `json:"itemId,omitempty"`
}

const (
	MetaCoins   = "coins"
	MetaTheme   = "theme"
	MetaEffect  = "effect"
	MetaPowerUp = "powerup"
)

// ParseMetadata decodes the stored metadata blob.
func ParseMetadata(raw []byte) (Metadata, error) {
	var meta Metadata
	if len(raw) == 0 {
		return meta, fmt.Errorf("EMPTY_METADATA: Payment carries no metadata")
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("BAD_METADATA: %w", err)
	}
	return meta, nil
}

// Payment is the server-side ledger record for one Pi payment.
type Payment struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Amount    float64   `json:"amount"`
	Memo      string    `json:"memo"`
	Metadata  string    `json:"metadata"`
	Status    Status    `json:"status"`
	TxID      string    `json:"txid,omitempty"`
	ToAddress string    `json:"toAddress,omitempty"`
	Sandbox   bool      `json:"sandbox"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
