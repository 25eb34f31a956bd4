package store

import (
	"fmt"
	"os"
)

// ResolveEnv determines the environment ID to use based on priority chain.
// Priority: explicit > SCOREBOOK_ENV env > "default"
// Returns the resolved environment ID and any validation error.
func ResolveEnv(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateEnvID(explicit); err != nil {
			return "", fmt.Errorf("invalid environment ID %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if envID := os.Getenv("SCOREBOOK_ENV"); envID != "" {
		if err := ValidateEnvID(envID); err != nil {
			return "", fmt.Errorf("invalid SCOREBOOK_ENV %q: %w", envID, err)
		}
		return envID, nil
	}

	return "default", nil
}
