package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/model"
	"github.com/nurpe/waste-contracts/internal/quantity"
	"github.com/nurpe/waste-contracts/internal/repository"
)

type TerminationStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

type TerminationService struct {
	store TerminationStore
	log   zerolog.Logger
}

// TerminateInput describes a contract that begins service. Missing sectors,
// start date or contract id make the call a no-op.
type TerminateInput struct {
	ContractType      model.ContractType
	SectorIDs         []uuid.UUID
	ServiceStart      *calendar.Date
	NewContractID     uuid.UUID
	NewContractNumber string
	ActingUserID      uuid.UUID
}

func NewTerminationService(store TerminationStore, log zerolog.Logger) *TerminationService {
	return &TerminationService{
		store: store,
		log:   log.With().Str("component", "termination").Logger(),
	}
}

// TerminateOverlapping closes every active contract of the same type that
// still covers one of the sectors on the day before the new contract starts.
// Each such contract gets exactly one AUTO_TERMINATION amendment referencing
// the new contract. All inserts share one transaction.
func (s *TerminationService) TerminateOverlapping(ctx context.Context, input TerminateInput) (*model.TerminationResult, error) {
	family, err := repository.FamilyFor(input.ContractType)
	if err != nil {
		return nil, err
	}

	result := &model.TerminationResult{TerminatedContracts: []model.TerminatedContract{}}

	sectorIDs := uniqueSectors(input.SectorIDs)
	if len(sectorIDs) == 0 || input.ServiceStart == nil || input.ServiceStart.IsZero() || input.NewContractID == uuid.Nil {
		return result, nil
	}

	serviceStart := *input.ServiceStart
	terminationDate := calendar.AddDays(serviceStart, -1)

	var terminated []model.TerminatedContract
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		terminated = nil

		candidates, err := tx.FindOverlapping(ctx, family, repository.OverlapQuery{
			SectorIDs:       sectorIDs,
			TerminationDate: terminationDate,
			ServiceStart:    serviceStart,
			ExcludeID:       input.NewContractID,
		})
		if err != nil {
			return fmt.Errorf("find overlapping contracts: %w", err)
		}

		for _, candidate := range candidates {
			done, err := tx.HasAutoTermination(ctx, family, candidate.ID, input.NewContractID)
			if err != nil {
				return fmt.Errorf("check termination of %s: %w", candidate.ID, err)
			}
			if done {
				s.log.Debug().
					Str("contract_id", candidate.ID.String()).
					Str("reference_contract_id", input.NewContractID.String()).
					Msg("already terminated, skipping")
				continue
			}

			entry, err := s.terminate(ctx, tx, family, candidate, input, serviceStart, terminationDate)
			if err != nil {
				return err
			}
			terminated = append(terminated, *entry)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("contract_type", string(family.Type)).
			Str("new_contract_id", input.NewContractID.String()).
			Msg("auto termination rolled back")
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailure, err)
	}

	if len(terminated) > 0 {
		result.TerminatedContracts = terminated
	}
	result.Count = len(result.TerminatedContracts)

	s.log.Info().
		Str("contract_type", string(family.Type)).
		Str("new_contract_id", input.NewContractID.String()).
		Str("termination_date", terminationDate.String()).
		Int("count", result.Count).
		Msg("auto termination finished")

	return result, nil
}

func (s *TerminationService) terminate(
	ctx context.Context,
	tx repository.Tx,
	family repository.Family,
	candidate model.Contract,
	input TerminateInput,
	serviceStart, terminationDate calendar.Date,
) (*model.TerminatedContract, error) {
	newQuantity, err := recomputeQuantity(family, candidate, terminationDate)
	if err != nil {
		return nil, fmt.Errorf("recompute quantity of %s: %w", candidate.ID, err)
	}
	delta := quantity.Delta(newQuantity, candidate.EstimatedQuantityTons)

	number, err := nextAmendmentNumber(ctx, tx, family, candidate.ID)
	if err != nil {
		return nil, err
	}

	reference := input.NewContractID
	endDate := terminationDate
	saved, err := tx.InsertAmendment(ctx, family, model.Amendment{
		ContractID:          candidate.ID,
		Number:              number,
		Date:                serviceStart,
		Type:                model.AmendmentTypeAutoTermination,
		NewEndDate:          &endDate,
		NewQuantityTons:     newQuantity,
		QuantityDelta:       delta,
		ReferenceContractID: &reference,
		Description:         terminationDescription(input),
		Notes:               fmt.Sprintf("Период сокращён до %s", terminationDate),
		CreatedBy:           input.ActingUserID,
		Lifecycle:           model.LifecycleActive,
	})
	if err != nil {
		return nil, fmt.Errorf("insert amendment for %s: %w", candidate.ID, err)
	}

	event := s.log.Info().
		Str("contract_id", candidate.ID.String()).
		Str("contract_number", candidate.Number).
		Str("amendment_number", saved.Number).
		Str("reference_contract_id", reference.String()).
		Str("new_end_date", terminationDate.String())
	if newQuantity != nil {
		event = event.Str("new_quantity_tons", newQuantity.StringFixed(2))
	}
	event.Msg("contract auto-terminated")

	return &model.TerminatedContract{
		ContractID:      candidate.ID,
		ContractNumber:  candidate.Number,
		AmendmentID:     saved.ID,
		AmendmentNumber: saved.Number,
		TerminationDate: terminationDate,
		NewQuantityTons: newQuantity,
		QuantityDelta:   delta,
	}, nil
}

// recomputeQuantity prorates tonnage to the shortened period. Types without a
// quantity column, unknown quantities and open-ended contracts yield nil.
func recomputeQuantity(family repository.Family, c model.Contract, newEnd calendar.Date) (*decimal.Decimal, error) {
	if !family.HasQuantity() || c.EstimatedQuantityTons == nil || c.EndDate == nil {
		return nil, nil
	}
	return quantity.Proportional(c.EstimatedQuantityTons, c.StartDate, c.EndDate, newEnd)
}

func terminationDescription(input TerminateInput) string {
	number := input.NewContractNumber
	if number == "" {
		number = input.NewContractID.String()
	}
	return fmt.Sprintf("Автоматическое завершение в связи с началом договора %s", number)
}

func uniqueSectors(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// EffectiveTerms resolves a contract's current end date and quantity from its
// latest non-deleted amendment, falling back to the contract row.
func (s *TerminationService) EffectiveTerms(ctx context.Context, contractType model.ContractType, contractID uuid.UUID) (*model.EffectiveTerms, error) {
	family, err := repository.FamilyFor(contractType)
	if err != nil {
		return nil, err
	}
	if contractID == uuid.Nil {
		return nil, fmt.Errorf("%w: contract id is required", ErrInvalidInput)
	}

	var terms *model.EffectiveTerms
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		contract, err := tx.GetContract(ctx, family, contractID)
		if err != nil {
			return err
		}
		latest, err := tx.LatestAmendment(ctx, family, contractID)
		if err != nil {
			return err
		}

		terms = &model.EffectiveTerms{
			ContractID:            contract.ID,
			ContractNumber:        contract.Number,
			StartDate:             contract.StartDate,
			EndDate:               contract.EndDate,
			EstimatedQuantityTons: contract.EstimatedQuantityTons,
		}
		if latest != nil {
			number := latest.Number
			terms.AmendmentNumber = &number
			if latest.NewEndDate != nil {
				terms.EndDate = latest.NewEndDate
			}
			if latest.NewQuantityTons != nil {
				terms.EstimatedQuantityTons = latest.NewQuantityTons
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailure, err)
	}
	return terms, nil
}
