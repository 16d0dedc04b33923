package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nurpe/waste-contracts/internal/repository"
)

const autoNumberPrefix = "AUTO-"

func FormatAutoNumber(n int64) string {
	return fmt.Sprintf("%s%d", autoNumberPrefix, n)
}

// nextAmendmentNumber must run in the transaction that inserts the amendment.
// The parent row lock keeps two numbering attempts for one contract from
// reading the same count.
func nextAmendmentNumber(ctx context.Context, tx repository.Tx, f repository.Family, contractID uuid.UUID) (string, error) {
	if err := tx.LockContract(ctx, f, contractID); err != nil {
		return "", fmt.Errorf("lock contract %s: %w", contractID, err)
	}
	count, err := tx.CountAmendments(ctx, f, contractID)
	if err != nil {
		return "", fmt.Errorf("count amendments of %s: %w", contractID, err)
	}
	return FormatAutoNumber(count + 1), nil
}
