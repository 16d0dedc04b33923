package repository

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/model"
)

const (
	dialectPostgres = "postgres"
	aliasContract   = "c"
	aliasSector     = "cs"

	colID                    = "id"
	colContractID            = "contract_id"
	colContractNumber        = "contract_number"
	colContractDateStart     = "contract_date_start"
	colContractDateEnd       = "contract_date_end"
	colIsActive              = "is_active"
	colDeletedAt             = "deleted_at"
	colSectorID              = "sector_id"
	colEstimatedQuantityTons = "estimated_quantity_tons"

	colAmendmentNumber          = "amendment_number"
	colAmendmentDate            = "amendment_date"
	colAmendmentType            = "amendment_type"
	colNewContractDateEnd       = "new_contract_date_end"
	colNewEstimatedQuantityTons = "new_estimated_quantity_tons"
	colQuantityAdjustmentAuto   = "quantity_adjustment_auto"
	colReferenceContractID      = "reference_contract_id"
	colDescription              = "description"
	colNotes                    = "notes"
	colCreatedBy                = "created_by"
	colCreatedAt                = "created_at"

	aliasTotal = "total"
)

var amendmentColumns = []interface{}{
	colID,
	colContractID,
	colAmendmentNumber,
	colAmendmentDate,
	colAmendmentType,
	colNewContractDateEnd,
	colNewEstimatedQuantityTons,
	colQuantityAdjustmentAuto,
	colReferenceContractID,
	colDescription,
	colNotes,
	colCreatedBy,
	colDeletedAt,
	colCreatedAt,
}

// OverlapQuery selects contracts still covering the day before a successor
// starts on one of the sectors.
type OverlapQuery struct {
	SectorIDs       []uuid.UUID
	TerminationDate calendar.Date
	ServiceStart    calendar.Date
	ExcludeID       uuid.UUID
}

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func col(name string) exp.IdentifierExpression {
	return goqu.I(aliasContract + "." + name)
}

func uuidValues(ids []uuid.UUID) []interface{} {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return values
}

func contractSelection(f Family) []interface{} {
	selection := []interface{}{
		col(colID),
		col(colContractNumber),
		col(colContractDateStart),
		col(colContractDateEnd),
		col(colIsActive),
		col(colDeletedAt),
	}
	if f.HasQuantity() {
		selection = append(selection, col(f.QuantityColumn).As(colEstimatedQuantityTons))
	} else {
		selection = append(selection, goqu.L("NULL::numeric").As(colEstimatedQuantityTons))
	}
	if f.Scope == ScopeDirect {
		selection = append(selection, col(f.SectorColumn).As(colSectorID))
	} else {
		selection = append(selection, goqu.L("NULL::uuid").As(colSectorID))
	}
	return selection
}

func buildOverlapQuery(f Family, q OverlapQuery) (string, error) {
	stmt := builder().
		From(goqu.T(f.ContractTable).As(aliasContract)).
		Select(contractSelection(f)...)

	var sectorMatch exp.Expression
	switch f.Scope {
	case ScopeAssociation:
		stmt = stmt.Distinct().
			Join(
				goqu.T(f.SectorTable).As(aliasSector),
				goqu.On(goqu.I(aliasSector+"."+colContractID).Eq(col(colID))),
			)
		sectorMatch = goqu.I(aliasSector + "." + f.SectorColumn).In(uuidValues(q.SectorIDs)...)
	default:
		sectorMatch = col(f.SectorColumn).In(uuidValues(q.SectorIDs)...)
	}

	stmt = stmt.Where(
		col(colIsActive).IsTrue(),
		col(colDeletedAt).IsNull(),
		col(colID).Neq(q.ExcludeID.String()),
		sectorMatch,
		col(colContractDateStart).Lte(q.TerminationDate.String()),
		goqu.Or(
			col(colContractDateEnd).IsNull(),
			col(colContractDateEnd).Gte(q.ServiceStart.String()),
		),
	).Order(col(colContractDateStart).Asc(), col(colID).Asc())

	sql, _, err := stmt.ToSQL()
	return sql, err
}

func buildGetContractQuery(f Family, id uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(goqu.T(f.ContractTable).As(aliasContract)).
		Select(contractSelection(f)...).
		Where(col(colID).Eq(id.String()), col(colDeletedAt).IsNull()).
		Limit(1).
		ToSQL()
	return sql, err
}

func buildContractSectorsQuery(f Family, contractID uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(f.SectorTable).
		Select(f.SectorColumn).
		Where(goqu.C(colContractID).Eq(contractID.String())).
		Order(goqu.C(f.SectorColumn).Asc()).
		ToSQL()
	return sql, err
}

func buildLockContractQuery(f Family, contractID uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(f.ContractTable).
		Select(colID).
		Where(goqu.C(colID).Eq(contractID.String())).
		ForUpdate(exp.Wait).
		ToSQL()
	return sql, err
}

func buildCountAmendmentsQuery(f Family, contractID uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(f.AmendmentTable).
		Select(goqu.COUNT(goqu.Star()).As(aliasTotal)).
		Where(
			goqu.C(colContractID).Eq(contractID.String()),
			goqu.C(colDeletedAt).IsNull(),
		).
		ToSQL()
	return sql, err
}

func buildAutoTerminationExistsQuery(f Family, contractID, referenceID uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(f.AmendmentTable).
		Select(goqu.COUNT(goqu.Star()).As(aliasTotal)).
		Where(
			goqu.C(colContractID).Eq(contractID.String()),
			goqu.C(colReferenceContractID).Eq(referenceID.String()),
			goqu.C(colAmendmentType).Eq(string(model.AmendmentTypeAutoTermination)),
			goqu.C(colDeletedAt).IsNull(),
		).
		ToSQL()
	return sql, err
}

func buildLatestAmendmentQuery(f Family, contractID uuid.UUID) (string, error) {
	sql, _, err := builder().
		From(f.AmendmentTable).
		Select(amendmentColumns...).
		Where(
			goqu.C(colContractID).Eq(contractID.String()),
			goqu.C(colDeletedAt).IsNull(),
		).
		Order(goqu.C(colCreatedAt).Desc(), goqu.C(colID).Desc()).
		Limit(1).
		ToSQL()
	return sql, err
}

func buildInsertAmendmentQuery(f Family, a model.Amendment) (string, error) {
	record := goqu.Record{
		colContractID:               a.ContractID.String(),
		colAmendmentNumber:          a.Number,
		colAmendmentDate:            a.Date.String(),
		colAmendmentType:            string(a.Type),
		colNewContractDateEnd:       nil,
		colNewEstimatedQuantityTons: nil,
		colQuantityAdjustmentAuto:   nil,
		colReferenceContractID:      nil,
		colDescription:              a.Description,
		colNotes:                    a.Notes,
		colCreatedBy:                a.CreatedBy.String(),
	}
	if a.NewEndDate != nil {
		record[colNewContractDateEnd] = a.NewEndDate.String()
	}
	if a.NewQuantityTons != nil {
		record[colNewEstimatedQuantityTons] = a.NewQuantityTons.String()
	}
	if a.QuantityDelta != nil {
		record[colQuantityAdjustmentAuto] = a.QuantityDelta.String()
	}
	if a.ReferenceContractID != nil {
		record[colReferenceContractID] = a.ReferenceContractID.String()
	}

	sql, _, err := builder().
		Insert(f.AmendmentTable).
		Rows(record).
		Returning(amendmentColumns...).
		ToSQL()
	return sql, err
}
