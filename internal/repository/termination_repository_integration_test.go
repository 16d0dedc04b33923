package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/db"
	"github.com/nurpe/waste-contracts/internal/model"
	"github.com/nurpe/waste-contracts/internal/repository"
	"github.com/nurpe/waste-contracts/internal/service"
)

// These tests recreate every contract and amendment table in the database
// named by TEST_DB_DSN. Point it at a throwaway database.
func connectTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	for _, f := range repository.Families() {
		for _, stmt := range contractTableStatements(f) {
			require.NoError(t, database.Exec(stmt).Error, stmt)
		}
	}
	require.NoError(t, db.Migrate(database))
	return database
}

func contractTableStatements(f repository.Family) []string {
	columns := `id UUID PRIMARY KEY,
		contract_number VARCHAR(64) NOT NULL,
		contract_date_start DATE,
		contract_date_end DATE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		deleted_at TIMESTAMPTZ`
	if f.HasQuantity() {
		columns += ",\n\t\t" + f.QuantityColumn + " NUMERIC(18,2)"
	}
	if f.Scope == repository.ScopeDirect {
		columns += ",\n\t\t" + f.SectorColumn + " UUID"
	}

	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE;`, f.AmendmentTable),
	}
	if f.SectorTable != "" {
		statements = append(statements, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE;`, f.SectorTable))
	}
	statements = append(statements,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE;`, f.ContractTable),
		fmt.Sprintf(`CREATE TABLE %s (%s);`, f.ContractTable, columns),
	)
	if f.SectorTable != "" {
		statements = append(statements, fmt.Sprintf(`CREATE TABLE %s (
		contract_id UUID NOT NULL REFERENCES %s(id),
		%s UUID NOT NULL,
		PRIMARY KEY (contract_id, %s)
	);`, f.SectorTable, f.ContractTable, f.SectorColumn, f.SectorColumn))
	}
	return statements
}

type contractFixture struct {
	contractType model.ContractType
	number       string
	start, end   string
	quantity     *string
	sectors      []uuid.UUID
}

func givenStoredContract(t *testing.T, database *gorm.DB, fixture contractFixture) uuid.UUID {
	t.Helper()
	f, err := repository.FamilyFor(fixture.contractType)
	require.NoError(t, err)

	id := uuid.New()
	var end *string
	if fixture.end != "" {
		end = &fixture.end
	}

	switch {
	case f.Scope == repository.ScopeAssociation:
		require.NoError(t, database.Exec(
			fmt.Sprintf(`INSERT INTO %s (id, contract_number, contract_date_start, contract_date_end)
			VALUES (?::uuid, ?, ?::date, ?::date)`, f.ContractTable),
			id.String(), fixture.number, fixture.start, end,
		).Error)
		for _, sector := range fixture.sectors {
			require.NoError(t, database.Exec(
				fmt.Sprintf(`INSERT INTO %s (contract_id, %s) VALUES (?::uuid, ?::uuid)`, f.SectorTable, f.SectorColumn),
				id.String(), sector.String(),
			).Error)
		}
	case f.HasQuantity():
		require.NoError(t, database.Exec(
			fmt.Sprintf(`INSERT INTO %s (id, contract_number, contract_date_start, contract_date_end, %s, %s)
			VALUES (?::uuid, ?, ?::date, ?::date, ?::numeric, ?::uuid)`, f.ContractTable, f.QuantityColumn, f.SectorColumn),
			id.String(), fixture.number, fixture.start, end, fixture.quantity, fixture.sectors[0].String(),
		).Error)
	default:
		require.NoError(t, database.Exec(
			fmt.Sprintf(`INSERT INTO %s (id, contract_number, contract_date_start, contract_date_end, %s)
			VALUES (?::uuid, ?, ?::date, ?::date, ?::uuid)`, f.ContractTable, f.SectorColumn),
			id.String(), fixture.number, fixture.start, end, fixture.sectors[0].String(),
		).Error)
	}
	return id
}

func startDate(t *testing.T, raw string) *calendar.Date {
	t.Helper()
	d, err := calendar.Parse(raw)
	require.NoError(t, err)
	return &d
}

func Test_Postgres_TerminatesHalfYearContract(t *testing.T) {
	// setup
	ctx := context.Background()
	database := connectTestDB(t)
	svc := service.NewTerminationService(repository.NewTerminationRepository(database), zerolog.Nop())
	sector := uuid.New()
	quantity := "1200"

	// arrange
	existingID := givenStoredContract(t, database, contractFixture{
		contractType: model.ContractTypeAerobic,
		number:       "A-1",
		start:        "2025-01-01",
		end:          "2025-12-31",
		quantity:     &quantity,
		sectors:      []uuid.UUID{sector},
	})
	input := service.TerminateInput{
		ContractType:      model.ContractTypeAerobic,
		SectorIDs:         []uuid.UUID{sector},
		ServiceStart:      startDate(t, "2025-07-01"),
		NewContractID:     uuid.New(),
		NewContractNumber: "A-2",
		ActingUserID:      uuid.New(),
	}

	// act
	result, err := svc.TerminateOverlapping(ctx, input)

	// assert
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	entry := result.TerminatedContracts[0]
	assert.Equal(t, existingID, entry.ContractID)
	assert.NotEqual(t, uuid.Nil, entry.AmendmentID)
	assert.Equal(t, "AUTO-1", entry.AmendmentNumber)
	assert.Equal(t, "2025-06-30", entry.TerminationDate.String())
	require.NotNil(t, entry.NewQuantityTons)
	assert.Equal(t, "595.07", entry.NewQuantityTons.StringFixed(2))
	require.NotNil(t, entry.QuantityDelta)
	assert.Equal(t, "-604.93", entry.QuantityDelta.StringFixed(2))

	terms, err := svc.EffectiveTerms(ctx, model.ContractTypeAerobic, existingID)
	require.NoError(t, err)
	require.NotNil(t, terms.EndDate)
	assert.Equal(t, "2025-06-30", terms.EndDate.String())
	assert.Equal(t, "595.07", terms.EstimatedQuantityTons.StringFixed(2))
	require.NotNil(t, terms.AmendmentNumber)
	assert.Equal(t, "AUTO-1", *terms.AmendmentNumber)

	// a repeated call changes nothing
	again, err := svc.TerminateOverlapping(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Count)

	var total int64
	require.NoError(t, database.Raw(
		`SELECT COUNT(*) FROM aerobic_contract_amendments WHERE contract_id = ?::uuid`, existingID.String(),
	).Scan(&total).Error)
	assert.Equal(t, int64(1), total)
}

func Test_Postgres_DisposalMatchesThroughSectorTable(t *testing.T) {
	// setup
	ctx := context.Background()
	database := connectTestDB(t)
	repo := repository.NewTerminationRepository(database)
	svc := service.NewTerminationService(repo, zerolog.Nop())
	sectorA, sectorB, other := uuid.New(), uuid.New(), uuid.New()

	// arrange
	earlier := givenStoredContract(t, database, contractFixture{
		contractType: model.ContractTypeDisposal,
		number:       "D-1",
		start:        "2025-01-01",
		end:          "2025-12-31",
		sectors:      []uuid.UUID{sectorA, sectorB},
	})
	openEnded := givenStoredContract(t, database, contractFixture{
		contractType: model.ContractTypeDisposal,
		number:       "D-2",
		start:        "2025-02-01",
		sectors:      []uuid.UUID{sectorB},
	})
	untouched := givenStoredContract(t, database, contractFixture{
		contractType: model.ContractTypeDisposal,
		number:       "D-3",
		start:        "2025-01-01",
		end:          "2025-12-31",
		sectors:      []uuid.UUID{other},
	})

	// act
	result, err := svc.TerminateOverlapping(ctx, service.TerminateInput{
		ContractType:  model.ContractTypeDisposal,
		SectorIDs:     []uuid.UUID{sectorA, sectorB},
		ServiceStart:  startDate(t, "2025-07-01"),
		NewContractID: uuid.New(),
		ActingUserID:  uuid.New(),
	})

	// assert
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)
	assert.Equal(t, earlier, result.TerminatedContracts[0].ContractID)
	assert.Equal(t, openEnded, result.TerminatedContracts[1].ContractID)
	for _, entry := range result.TerminatedContracts {
		assert.Nil(t, entry.NewQuantityTons)
		assert.Nil(t, entry.QuantityDelta)
	}

	family, err := repository.FamilyFor(model.ContractTypeDisposal)
	require.NoError(t, err)
	err = repo.WithinTx(ctx, func(tx repository.Tx) error {
		contract, err := tx.GetContract(ctx, family, earlier)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{sectorA, sectorB}, contract.SectorIDs)

		latest, err := tx.LatestAmendment(ctx, family, untouched)
		require.NoError(t, err)
		assert.Nil(t, latest)
		return nil
	})
	require.NoError(t, err)
}

func Test_Postgres_DuplicateTerminationIsRejectedByIndex(t *testing.T) {
	// setup
	ctx := context.Background()
	database := connectTestDB(t)
	repo := repository.NewTerminationRepository(database)
	family, err := repository.FamilyFor(model.ContractTypeWasteCollector)
	require.NoError(t, err)

	// arrange
	contractID := givenStoredContract(t, database, contractFixture{
		contractType: model.ContractTypeWasteCollector,
		number:       "W-1",
		start:        "2025-01-01",
		end:          "2025-12-31",
		sectors:      []uuid.UUID{uuid.New()},
	})
	reference := uuid.New()
	endDate := *startDate(t, "2025-06-30")
	amendment := model.Amendment{
		ContractID:          contractID,
		Number:              "AUTO-1",
		Date:                *startDate(t, "2025-07-01"),
		Type:                model.AmendmentTypeAutoTermination,
		NewEndDate:          &endDate,
		ReferenceContractID: &reference,
		CreatedBy:           uuid.New(),
	}

	// act
	err = repo.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockContract(ctx, family, contractID); err != nil {
			return err
		}
		saved, err := tx.InsertAmendment(ctx, family, amendment)
		if err != nil {
			return err
		}
		assert.Nil(t, saved.NewQuantityTons)
		_, err = tx.InsertAmendment(ctx, family, amendment)
		return err
	})

	// assert
	assert.ErrorIs(t, err, repository.ErrDuplicateAmendment)
	assert.True(t, repository.IsRetryable(err))

	err = repo.WithinTx(ctx, func(tx repository.Tx) error {
		count, err := tx.CountAmendments(ctx, family, contractID)
		require.NoError(t, err)
		assert.Zero(t, count, "rolled back")
		return tx.LockContract(ctx, family, uuid.New())
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
