package service

import (
	"errors"

	"github.com/nurpe/waste-contracts/internal/calendar"
	"github.com/nurpe/waste-contracts/internal/model"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidInput        = errors.New("invalid input")
	ErrTransactionFailure  = errors.New("transaction failed")
	ErrInvalidContractType = model.ErrInvalidContractType
	ErrInvalidRange        = calendar.ErrInvalidRange
)
