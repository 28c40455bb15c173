package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBatchAborted = errors.New("ingestion batch aborted")
)
