package repository

import (
	"fmt"

	"github.com/nurpe/waste-contracts/internal/model"
)

// ScopeShape tells how a contract family links contracts to sectors.
type ScopeShape int

const (
	// ScopeDirect: a sector_id column on the contract row.
	ScopeDirect ScopeShape = iota
	// ScopeAssociation: a contract_id/sector_id join table.
	ScopeAssociation
)

// Family describes the tables of one contract type. All six types share the
// termination engine and differ only in this record.
type Family struct {
	Type           model.ContractType
	ContractTable  string
	AmendmentTable string
	QuantityColumn string // empty when the type carries no tonnage
	Scope          ScopeShape
	SectorColumn   string
	SectorTable    string
}

func (f Family) HasQuantity() bool {
	return f.QuantityColumn != ""
}

func simpleFamily(t model.ContractType, prefix string, withQuantity bool) Family {
	f := Family{
		Type:           t,
		ContractTable:  prefix + "_contracts",
		AmendmentTable: prefix + "_contract_amendments",
		Scope:          ScopeDirect,
		SectorColumn:   "sector_id",
	}
	if withQuantity {
		f.QuantityColumn = "estimated_quantity_tons"
	}
	return f
}

var families = []Family{
	simpleFamily(model.ContractTypeAerobic, "aerobic", true),
	simpleFamily(model.ContractTypeAnaerobic, "anaerobic", true),
	simpleFamily(model.ContractTypeTMB, "tmb", true),
	simpleFamily(model.ContractTypeSorting, "sorting", true),
	simpleFamily(model.ContractTypeWasteCollector, "waste_collector", false),
	{
		Type:           model.ContractTypeDisposal,
		ContractTable:  "disposal_contracts",
		AmendmentTable: "disposal_contract_amendments",
		Scope:          ScopeAssociation,
		SectorColumn:   "sector_id",
		SectorTable:    "disposal_contract_sectors",
	},
}

func FamilyFor(t model.ContractType) (Family, error) {
	for _, f := range families {
		if f.Type == t {
			return f, nil
		}
	}
	return Family{}, fmt.Errorf("%w: %q", model.ErrInvalidContractType, t)
}

// Families lists every registered family in a stable order.
func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}
