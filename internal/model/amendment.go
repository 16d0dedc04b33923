package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/waste-contracts/internal/calendar"
)

type AmendmentType string

const (
	AmendmentTypeAutoTermination AmendmentType = "AUTO_TERMINATION"
)

// Amendment is an append-only change record against a contract. The contract
// row itself is never rewritten.
type Amendment struct {
	ID                  uuid.UUID
	ContractID          uuid.UUID
	Number              string
	Date                calendar.Date
	Type                AmendmentType
	NewEndDate          *calendar.Date
	NewQuantityTons     *decimal.Decimal
	QuantityDelta       *decimal.Decimal
	ReferenceContractID *uuid.UUID
	Description         string
	Notes               string
	CreatedBy           uuid.UUID
	Lifecycle           Lifecycle
	CreatedAt           time.Time
}

type TerminatedContract struct {
	ContractID      uuid.UUID        `json:"contract_id"`
	ContractNumber  string           `json:"contract_number"`
	AmendmentID     uuid.UUID        `json:"amendment_id"`
	AmendmentNumber string           `json:"amendment_number"`
	TerminationDate calendar.Date    `json:"termination_date"`
	NewQuantityTons *decimal.Decimal `json:"new_quantity_tons"`
	QuantityDelta   *decimal.Decimal `json:"quantity_delta"`
}

type TerminationResult struct {
	TerminatedContracts []TerminatedContract `json:"terminated_contracts"`
	Count               int                  `json:"count"`
}

// EffectiveTerms is a contract's end date and quantity after its latest
// amendment is applied.
type EffectiveTerms struct {
	ContractID            uuid.UUID        `json:"contract_id"`
	ContractNumber        string           `json:"contract_number"`
	StartDate             *calendar.Date   `json:"start_date"`
	EndDate               *calendar.Date   `json:"end_date"`
	EstimatedQuantityTons *decimal.Decimal `json:"estimated_quantity_tons"`
	AmendmentNumber       *string          `json:"amendment_number"`
}
