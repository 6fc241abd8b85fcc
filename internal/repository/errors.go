package repository

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAdjustmentNotFound  = errors.New("stock adjustment not found")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrEmptyUpdate         = errors.New("update has no fields")
)
