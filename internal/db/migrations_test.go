package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nurpe/waste-contracts/internal/repository"
)

func Test_migrationStatements_CoverEveryFamily(t *testing.T) {
	all := strings.Join(migrationStatements(), "\n")

	for _, f := range repository.Families() {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+f.AmendmentTable+" (")
		assert.Contains(t, all, "REFERENCES "+f.ContractTable+"(id)")
		assert.Contains(t, all, "uq_"+f.AmendmentTable+"_auto_termination")
	}
	assert.NotContains(t, all, "CREATE TABLE IF NOT EXISTS disposal_contracts ")
}

func Test_migrationStatements_AmendmentNumbersAreNotUnique(t *testing.T) {
	all := strings.Join(migrationStatements(), "\n")

	assert.NotContains(t, all, "(contract_id, amendment_number)")
	for _, f := range repository.Families() {
		assert.NotContains(t, all, "uq_"+f.AmendmentTable+"_number")
	}
}

func Test_migrationStatements_DedupIndexIgnoresDeleted(t *testing.T) {
	for _, stmt := range migrationStatements() {
		if strings.Contains(stmt, "_auto_termination ON") {
			assert.Contains(t, stmt, "(contract_id, reference_contract_id)")
			assert.Contains(t, stmt, "deleted_at IS NULL")
			assert.Contains(t, stmt, "amendment_type = 'AUTO_TERMINATION'")
		}
	}
}
