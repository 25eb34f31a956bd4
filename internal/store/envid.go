// Package store provides environment store resolution for scorebook.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// Environment ID validation errors.
var (
	// ErrInvalidEnvID indicates the environment ID format is invalid.
	ErrInvalidEnvID = errors.New("invalid environment ID: must be lowercase alphanumeric with hyphens, 1-4 path segments")

	// ErrReservedEnvID indicates the environment ID is reserved and cannot be created.
	ErrReservedEnvID = errors.New("reserved environment ID: cannot create stores with reserved IDs")
)

// envIDRegex matches 1-4 slash-separated segments of lowercase
// alphanumerics and hyphens, 1-64 chars each, no edge hyphens.
var envIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(\/[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?){0,3}$`)

// Reserved IDs can be targeted by commands but never created explicitly.
var reservedEnvIDs = map[string]bool{
	"default": true,
	"_system": true,
}

// ValidateEnvID checks an environment ID's format. Reserved IDs such as
// "_system" pass here; use ValidateEnvIDForCreation for create paths.
func ValidateEnvID(id string) error {
	if id == "" || len(id) > 256 {
		return ErrInvalidEnvID
	}
	if reservedEnvIDs[id] {
		return nil
	}
	// The regex cannot catch consecutive hyphens.
	if strings.Contains(id, "--") {
		return ErrInvalidEnvID
	}
	if !envIDRegex.MatchString(id) {
		return ErrInvalidEnvID
	}
	return nil
}

// IsReservedEnvID reports whether the ID is reserved.
func IsReservedEnvID(id string) bool {
	return reservedEnvIDs[id]
}

// ValidateEnvIDForCreation rejects both malformed and reserved IDs.
func ValidateEnvIDForCreation(id string) error {
	if err := ValidateEnvID(id); err != nil {
		return err
	}
	if IsReservedEnvID(id) {
		return ErrReservedEnvID
	}
	return nil
}
