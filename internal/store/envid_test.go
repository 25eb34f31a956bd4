package store

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEnvID(t *testing.T) {
	valid := []string{
		"prod",
		"staging",
		"league-2025",
		"org/league/prod",
		"a",
		"a/b/c/d",
		strings.Repeat("x", 64),
		"default", // reserved but targetable
		"_system",
	}
	for _, id := range valid {
		if err := ValidateEnvID(id); err != nil {
			t.Errorf("ValidateEnvID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"UPPER",
		"has space",
		"-leading",
		"trailing-",
		"double--hyphen",
		"a/b/c/d/e", // too many segments
		strings.Repeat("x", 65),
		strings.Repeat("a/", 130) + "a",
		"slash/",
		"/slash",
	}
	for _, id := range invalid {
		if err := ValidateEnvID(id); !errors.Is(err, ErrInvalidEnvID) {
			t.Errorf("ValidateEnvID(%q) = %v, want ErrInvalidEnvID", id, err)
		}
	}
}

func TestValidateEnvIDForCreation(t *testing.T) {
	if err := ValidateEnvIDForCreation("prod"); err != nil {
		t.Errorf("creation of prod rejected: %v", err)
	}

	for _, id := range []string{"default", "_system"} {
		if err := ValidateEnvIDForCreation(id); !errors.Is(err, ErrReservedEnvID) {
			t.Errorf("ValidateEnvIDForCreation(%q) = %v, want ErrReservedEnvID", id, err)
		}
	}
}

func TestIsReservedEnvID(t *testing.T) {
	if !IsReservedEnvID("default") || !IsReservedEnvID("_system") {
		t.Error("reserved IDs not recognized")
	}
	if IsReservedEnvID("prod") {
		t.Error("prod wrongly reserved")
	}
}
