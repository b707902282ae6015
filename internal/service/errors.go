package service

import "errors"

var (
	// ErrSchema reports an input dataset missing a required column.
	// Nothing is persisted; surfaced as a client error.
	ErrSchema = errors.New("dataset is missing the required 'target' column")
	// ErrTraining reports a classifier fitting failure, typically
	// degenerate data. No artifact or ledger row is produced.
	ErrTraining = errors.New("classifier training failed")
	// ErrNoModel reports inference requested before any training has
	// ever succeeded. Surfaced as not-found.
	ErrNoModel = errors.New("no trained model found")
)
