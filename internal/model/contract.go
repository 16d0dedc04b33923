package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/waste-contracts/internal/calendar"
)

var ErrInvalidContractType = errors.New("invalid contract type")

type ContractType string

const (
	ContractTypeAerobic        ContractType = "AEROBIC"
	ContractTypeAnaerobic      ContractType = "ANAEROBIC"
	ContractTypeTMB            ContractType = "TMB"
	ContractTypeSorting        ContractType = "SORTING"
	ContractTypeWasteCollector ContractType = "WASTE_COLLECTOR"
	ContractTypeDisposal       ContractType = "DISPOSAL"
)

var ContractTypes = []ContractType{
	ContractTypeAerobic,
	ContractTypeAnaerobic,
	ContractTypeTMB,
	ContractTypeSorting,
	ContractTypeWasteCollector,
	ContractTypeDisposal,
}

// ParseContractType accepts "waste-collector", "waste_collector" and any case.
func ParseContractType(raw string) (ContractType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	for _, t := range ContractTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidContractType, raw)
}

type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleDeleted Lifecycle = "DELETED"
)

type Contract struct {
	ID                    uuid.UUID
	Type                  ContractType
	Number                string
	StartDate             *calendar.Date
	EndDate               *calendar.Date // nil for open-ended contracts
	IsActive              bool
	Lifecycle             Lifecycle
	EstimatedQuantityTons *decimal.Decimal
	SectorIDs             []uuid.UUID
}

// Covers reports whether the contract serves at least one of the sectors.
func (c Contract) Covers(sectorIDs []uuid.UUID) bool {
	for _, own := range c.SectorIDs {
		for _, id := range sectorIDs {
			if own == id {
				return true
			}
		}
	}
	return false
}
