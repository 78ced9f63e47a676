package models

import "time"

// AgreementStatus is the lifecycle status of an escrow agreement. The chain is
// the source of truth; local rows only ever move forward along the lifecycle.
type AgreementStatus string

const (
	AgreementPending        AgreementStatus = "pending"
	AgreementActive         AgreementStatus = "active"
	AgreementCompleted      AgreementStatus = "completed"
	AgreementStatusDisputed AgreementStatus = "disputed"
	AgreementFinalized      AgreementStatus = "finalized"
	AgreementCancelled      AgreementStatus = "cancelled"
)

// agreementTransitions mirrors the contract's state machine:
// Pending -> {Active, Cancelled}; Active -> {Completed, Disputed};
// Completed -> {Finalized, Disputed}. Disputed, Finalized and Cancelled are terminal.
var agreementTransitions = map[AgreementStatus]map[AgreementStatus]bool{
	AgreementPending:   {AgreementActive: true, AgreementCancelled: true},
	AgreementActive:    {AgreementCompleted: true, AgreementStatusDisputed: true},
	AgreementCompleted: {AgreementFinalized: true, AgreementStatusDisputed: true},
}

// CanTransition reports whether the contract state machine permits moving from
// the current status to the target status.
func (s AgreementStatus) CanTransition(to AgreementStatus) bool {
	if s == to {
		return false
	}
	return agreementTransitions[s][to]
}

// Terminal reports whether no further transition is possible.
func (s AgreementStatus) Terminal() bool {
	return len(agreementTransitions[s]) == 0
}

var agreementRank = map[AgreementStatus]int{
	AgreementPending:        0,
	AgreementActive:         1,
	AgreementCompleted:      2,
	AgreementStatusDisputed: 3,
	AgreementFinalized:      3,
	AgreementCancelled:      3,
}

// Rank returns the monotonic ordering position of the status. Terminal
// statuses share the top rank; Terminal guards moves between them. Fetched
// state may legitimately skip ranks forward (missed notifications), but a
// lower rank is always a regression. Unknown statuses rank below Pending.
func (s AgreementStatus) Rank() int {
	rank, ok := agreementRank[s]
	if !ok {
		return -1
	}
	return rank
}

// MilestoneStatus is the status of one payable unit of work. Transitions are
// strictly monotonic; a backward move is a data-consistency fault.
type MilestoneStatus string

const (
	MilestonePending         MilestoneStatus = "pending"
	MilestoneInProgress      MilestoneStatus = "in_progress"
	MilestoneStatusSubmitted MilestoneStatus = "submitted"
	MilestoneStatusApproved  MilestoneStatus = "approved"
	MilestonePaid            MilestoneStatus = "paid"
)

var milestoneRank = map[MilestoneStatus]int{
	MilestonePending:         0,
	MilestoneInProgress:      1,
	MilestoneStatusSubmitted: 2,
	MilestoneStatusApproved:  3,
	MilestonePaid:            4,
}

// Rank returns the monotonic ordering position of the status. Unknown statuses
// rank below Pending so they can never overwrite known state.
func (s MilestoneStatus) Rank() int {
	rank, ok := milestoneRank[s]
	if !ok {
		return -1
	}
	return rank
}

// CanAdvance reports whether moving to the target status is a forward move.
func (s MilestoneStatus) CanAdvance(to MilestoneStatus) bool {
	return to.Rank() > s.Rank()
}

// Agreement is the locally cached copy of one on-chain escrow employment
// engagement. Canonical state lives on the ledger; this row is refreshed from a
// ledger query on every relevant notification.
type Agreement struct {
	ID              uint64          `json:"id" db:"id"`
	Company         string          `json:"company" db:"company"`
	Talent          string          `json:"talent" db:"talent"`
	Title           string          `json:"title" db:"title"`
	MetadataRef     string          `json:"metadata_ref" db:"metadata_ref"`
	TotalAmount     string          `json:"total_amount" db:"total_amount"` // smallest units, decimal string
	Status          AgreementStatus `json:"status" db:"status"`
	StartAt         *time.Time      `json:"start_at,omitempty" db:"start_at"`
	EndAt           *time.Time      `json:"end_at,omitempty" db:"end_at"`
	CompanyApproved bool            `json:"company_approved" db:"company_approved"`
	TalentApproved  bool            `json:"talent_approved" db:"talent_approved"`
	MilestoneCount  int             `json:"milestone_count" db:"milestone_count"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Milestone is one payable unit of work within an Agreement.
type Milestone struct {
	AgreementID    uint64          `json:"agreement_id" db:"agreement_id"`
	Index          int             `json:"index" db:"milestone_index"`
	Description    string          `json:"description" db:"description"`
	Amount         string          `json:"amount" db:"amount"` // smallest units, decimal string
	Deadline       *time.Time      `json:"deadline,omitempty" db:"deadline"`
	Status         MilestoneStatus `json:"status" db:"status"`
	DeliverableRef string          `json:"deliverable_ref,omitempty" db:"deliverable_ref"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// AgreementWithMilestones is the read-API response shape.
type AgreementWithMilestones struct {
	Agreement
	Milestones []Milestone `json:"milestones"`
}
