package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared across stages. Stages map these onto StageResult
// statuses: ErrInputMissing yields SKIPPED, everything else FAILED.
var (
	// ErrInputMissing marks a required upstream artifact as absent.
	ErrInputMissing = errors.New("required input missing")

	// ErrIntegrity marks checksum mismatches and malformed payloads.
	ErrIntegrity = errors.New("integrity error")

	// ErrExternalService marks an exhausted retry against a remote system.
	ErrExternalService = errors.New("external service error")

	// ErrConfig marks unknown playbooks, unknown models, and similar
	// misconfiguration.
	ErrConfig = errors.New("config error")
)

// ConflictError reports an embedding dimension mismatch between the
// product configuration and an existing collection. In strict mode a
// production query must not proceed past it.
type ConflictError struct {
	Collection    string
	CollectionDim int
	ConfigModel   string
	ConfigDim     int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"embedding dimension conflict on %s: collection has dim=%d but product config (%s) expects dim=%d; re-index the version or align the embedding config",
		e.Collection, e.CollectionDim, e.ConfigModel, e.ConfigDim)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
