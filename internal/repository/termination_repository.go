package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/model"
)

// Tx is the set of reads and writes the termination engine performs inside
// one transaction.
type Tx interface {
	FindOverlapping(ctx context.Context, f Family, q OverlapQuery) ([]model.Contract, error)
	HasAutoTermination(ctx context.Context, f Family, contractID, referenceID uuid.UUID) (bool, error)
	LockContract(ctx context.Context, f Family, contractID uuid.UUID) error
	CountAmendments(ctx context.Context, f Family, contractID uuid.UUID) (int64, error)
	InsertAmendment(ctx context.Context, f Family, a model.Amendment) (*model.Amendment, error)
	GetContract(ctx context.Context, f Family, id uuid.UUID) (*model.Contract, error)
	LatestAmendment(ctx context.Context, f Family, contractID uuid.UUID) (*model.Amendment, error)
}

type TerminationRepository struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
}

type Option func(*TerminationRepository)

// WithIsolation sets the isolation level of every transaction the repository
// opens.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(r *TerminationRepository) {
		r.isolation = level
	}
}

func NewTerminationRepository(db *gorm.DB, options ...Option) *TerminationRepository {
	r := &TerminationRepository{db: db, isolation: sql.LevelReadCommitted}
	for _, option := range options {
		option(r)
	}
	return r
}

// WithinTx runs fn in one transaction. It commits when fn returns nil and
// rolls back otherwise; the pooled connection is released either way.
func (r *TerminationRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, &sql.TxOptions{Isolation: r.isolation})
}

type gormTx struct {
	db *gorm.DB
}

type contractRow struct {
	ID                    uuid.UUID
	ContractNumber        string
	ContractDateStart     *time.Time
	ContractDateEnd       *time.Time
	IsActive              bool
	DeletedAt             *time.Time
	EstimatedQuantityTons decimal.NullDecimal
	SectorID              *uuid.UUID
}

func (row contractRow) toModel(f Family) model.Contract {
	c := model.Contract{
		ID:        row.ID,
		Type:      f.Type,
		Number:    row.ContractNumber,
		StartDate: calendar.FromPtr(row.ContractDateStart),
		EndDate:   calendar.FromPtr(row.ContractDateEnd),
		IsActive:  row.IsActive,
		Lifecycle: model.LifecycleActive,
	}
	if row.DeletedAt != nil {
		c.Lifecycle = model.LifecycleDeleted
	}
	if row.EstimatedQuantityTons.Valid {
		q := row.EstimatedQuantityTons.Decimal
		c.EstimatedQuantityTons = &q
	}
	if row.SectorID != nil {
		c.SectorIDs = []uuid.UUID{*row.SectorID}
	}
	return c
}

type amendmentRow struct {
	ID                       uuid.UUID
	ContractID               uuid.UUID
	AmendmentNumber          string
	AmendmentDate            time.Time
	AmendmentType            string
	NewContractDateEnd       *time.Time
	NewEstimatedQuantityTons decimal.NullDecimal
	QuantityAdjustmentAuto   decimal.NullDecimal
	ReferenceContractID      *uuid.UUID
	Description              *string
	Notes                    *string
	CreatedBy                uuid.UUID
	DeletedAt                *time.Time
	CreatedAt                time.Time
}

func (row amendmentRow) toModel() model.Amendment {
	a := model.Amendment{
		ID:                  row.ID,
		ContractID:          row.ContractID,
		Number:              row.AmendmentNumber,
		Date:                calendar.Normalize(row.AmendmentDate),
		Type:                model.AmendmentType(row.AmendmentType),
		NewEndDate:          calendar.FromPtr(row.NewContractDateEnd),
		ReferenceContractID: row.ReferenceContractID,
		CreatedBy:           row.CreatedBy,
		Lifecycle:           model.LifecycleActive,
		CreatedAt:           row.CreatedAt,
	}
	if row.NewEstimatedQuantityTons.Valid {
		q := row.NewEstimatedQuantityTons.Decimal
		a.NewQuantityTons = &q
	}
	if row.QuantityAdjustmentAuto.Valid {
		d := row.QuantityAdjustmentAuto.Decimal
		a.QuantityDelta = &d
	}
	if row.Description != nil {
		a.Description = *row.Description
	}
	if row.Notes != nil {
		a.Notes = *row.Notes
	}
	if row.DeletedAt != nil {
		a.Lifecycle = model.LifecycleDeleted
	}
	return a
}

func (t *gormTx) FindOverlapping(ctx context.Context, f Family, q OverlapQuery) ([]model.Contract, error) {
	if len(q.SectorIDs) == 0 {
		return []model.Contract{}, nil
	}
	query, err := buildOverlapQuery(f, q)
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}

	var rows []contractRow
	if err := t.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}

	contracts := make([]model.Contract, 0, len(rows))
	for _, row := range rows {
		contracts = append(contracts, row.toModel(f))
	}
	return contracts, nil
}

func (t *gormTx) HasAutoTermination(ctx context.Context, f Family, contractID, referenceID uuid.UUID) (bool, error) {
	query, err := buildAutoTerminationExistsQuery(f, contractID, referenceID)
	if err != nil {
		return false, fmt.Errorf("build dedup query: %w", err)
	}
	var total int64
	if err := t.db.WithContext(ctx).Raw(query).Scan(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

func (t *gormTx) LockContract(ctx context.Context, f Family, contractID uuid.UUID) error {
	query, err := buildLockContractQuery(f, contractID)
	if err != nil {
		return fmt.Errorf("build lock query: %w", err)
	}
	var locked []uuid.UUID
	if err := t.db.WithContext(ctx).Raw(query).Scan(&locked).Error; err != nil {
		return err
	}
	if len(locked) == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) CountAmendments(ctx context.Context, f Family, contractID uuid.UUID) (int64, error) {
	query, err := buildCountAmendmentsQuery(f, contractID)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := t.db.WithContext(ctx).Raw(query).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (t *gormTx) InsertAmendment(ctx context.Context, f Family, a model.Amendment) (*model.Amendment, error) {
	query, err := buildInsertAmendmentQuery(f, a)
	if err != nil {
		return nil, fmt.Errorf("build insert query: %w", err)
	}
	var row amendmentRow
	if err := t.db.WithContext(ctx).Raw(query).Scan(&row).Error; err != nil {
		return nil, classify(err)
	}
	saved := row.toModel()
	return &saved, nil
}

func (t *gormTx) GetContract(ctx context.Context, f Family, id uuid.UUID) (*model.Contract, error) {
	query, err := buildGetContractQuery(f, id)
	if err != nil {
		return nil, fmt.Errorf("build contract query: %w", err)
	}
	var row contractRow
	if err := t.db.WithContext(ctx).Raw(query).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	contract := row.toModel(f)

	if f.Scope == ScopeAssociation {
		sectorsQuery, err := buildContractSectorsQuery(f, id)
		if err != nil {
			return nil, fmt.Errorf("build sectors query: %w", err)
		}
		var sectorIDs []uuid.UUID
		if err := t.db.WithContext(ctx).Raw(sectorsQuery).Scan(&sectorIDs).Error; err != nil {
			return nil, err
		}
		contract.SectorIDs = sectorIDs
	}
	return &contract, nil
}

func (t *gormTx) LatestAmendment(ctx context.Context, f Family, contractID uuid.UUID) (*model.Amendment, error) {
	query, err := buildLatestAmendmentQuery(f, contractID)
	if err != nil {
		return nil, fmt.Errorf("build latest amendment query: %w", err)
	}
	var row amendmentRow
	if err := t.db.WithContext(ctx).Raw(query).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	a := row.toModel()
	return &a, nil
}
