package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/waste-contracts/internal/repository"
)

var baseStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
}

// amendmentStatements builds the ledger table of one family. Contract tables
// belong to the CRUD service and are only referenced here.
func amendmentStatements(f repository.Family) []string {
	table := f.AmendmentTable
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES %s(id),
		amendment_number VARCHAR(64) NOT NULL,
		amendment_date DATE NOT NULL,
		amendment_type VARCHAR(32) NOT NULL,
		new_contract_date_end DATE,
		new_estimated_quantity_tons NUMERIC(18,2),
		quantity_adjustment_auto NUMERIC(18,2),
		reference_contract_id UUID,
		description TEXT,
		notes TEXT,
		created_by UUID NOT NULL,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`, table, f.ContractTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_contract_id ON %s (contract_id);`, table, table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_auto_termination ON %s (contract_id, reference_contract_id)
		WHERE amendment_type = 'AUTO_TERMINATION' AND deleted_at IS NULL;`, table, table),
	}
}

func migrationStatements() []string {
	statements := append([]string(nil), baseStatements...)
	for _, f := range repository.Families() {
		statements = append(statements, amendmentStatements(f)...)
	}
	return statements
}

// Migrate creates the amendment ledgers. The contract tables must already exist.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements() {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
