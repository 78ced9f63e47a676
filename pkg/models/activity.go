package models

import (
	"encoding/json"
	"time"
)

// NotificationType is the closed set of ledger state-change notifications the
// reconciliation engine consumes.
type NotificationType string

const (
	AgreementCreated   NotificationType = "agreement.created"
	AgreementAccepted  NotificationType = "agreement.accepted"
	AgreementActivated NotificationType = "agreement.activated"
	MilestoneSubmitted NotificationType = "milestone.submitted"
	MilestoneApproved  NotificationType = "milestone.approved"
	MilestonePaidOut   NotificationType = "milestone.paid"
	AgreementDisputed  NotificationType = "agreement.disputed"
	AgreementDone      NotificationType = "agreement.completed"
	AgreementFinal     NotificationType = "agreement.finalized"
	AgreementVoided    NotificationType = "agreement.cancelled"
	CredentialIssued   NotificationType = "credential.issued"
)

// NotificationTypes lists every type in topic-subscription order.
var NotificationTypes = []NotificationType{
	AgreementCreated,
	AgreementAccepted,
	AgreementActivated,
	MilestoneSubmitted,
	MilestoneApproved,
	MilestonePaidOut,
	AgreementDisputed,
	AgreementDone,
	AgreementFinal,
	AgreementVoided,
	CredentialIssued,
}

// Known reports whether the type belongs to the closed set.
func (t NotificationType) Known() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationPayload carries the type-specific fields of a notification.
// Amounts are decimal strings in smallest units; zero values mean "not set".
type NotificationPayload struct {
	MilestoneIndex *int   `json:"milestone_index,omitempty"`
	Amount         string `json:"amount,omitempty"`
	ExternalRef    string `json:"external_ref,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Notification is one confirmed ledger state-change record, delivered by the
// feed in live or replay mode. Delivery may repeat or arrive out of causal
// order; the idempotency key is the only dedup authority.
type Notification struct {
	Type             NotificationType    `json:"type" validate:"required"`
	AgreementID      uint64              `json:"agreement_id" validate:"required"`
	IdempotencyKey   string              `json:"idempotency_key" validate:"required"`
	SequencePosition uint64              `json:"sequence_position" validate:"required"`
	Company          string              `json:"company,omitempty"`
	Talent           string              `json:"talent,omitempty"`
	Initiator        string              `json:"initiator,omitempty"`
	Payload          NotificationPayload `json:"payload"`
	Timestamp        time.Time           `json:"timestamp"`
}

// ActivityRecord is the durable, deduplicated projection of one notification.
// Append-only: never updated after creation except the Processed flag, never
// deleted.
type ActivityRecord struct {
	ID               int64            `json:"id" db:"id"`
	AgreementID      uint64           `json:"agreement_id" db:"agreement_id"`
	IdempotencyKey   string           `json:"idempotency_key" db:"idempotency_key"`
	SequencePosition uint64           `json:"sequence_position" db:"sequence_position"`
	Type             NotificationType `json:"type" db:"type"`
	Company          string           `json:"company" db:"company"`
	Talent           string           `json:"talent" db:"talent"`
	Initiator        string           `json:"initiator" db:"initiator"`
	Payload          json.RawMessage  `json:"payload" db:"payload"`
	Timestamp        time.Time        `json:"timestamp" db:"timestamp"`
	Processed        bool             `json:"processed" db:"processed"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// QuarantineReason classifies why a notification could not be applied.
type QuarantineReason string

const (
	QuarantineInvalidReference   QuarantineReason = "invalid_reference"
	QuarantineInvariantViolation QuarantineReason = "invariant_violation"
	QuarantineRetriesExhausted   QuarantineReason = "retries_exhausted"
)

// QuarantinedNotification is the durable side-log entry for a notification
// that could not be safely applied. It holds the affected agreement's
// watermark until an operator resolves it.
type QuarantinedNotification struct {
	ID               string           `json:"id" db:"id"`
	AgreementID      uint64           `json:"agreement_id" db:"agreement_id"`
	IdempotencyKey   string           `json:"idempotency_key" db:"idempotency_key"`
	SequencePosition uint64           `json:"sequence_position" db:"sequence_position"`
	Type             NotificationType `json:"type" db:"type"`
	Reason           QuarantineReason `json:"reason" db:"reason"`
	Detail           string           `json:"detail" db:"detail"`
	Notification     []byte           `json:"-" db:"notification"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}
