package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultStoreRoot returns the root directory for all environment stores.
// SCOREBOOK_STORE_ROOT overrides it; otherwise ~/.scorebook/stores, falling
// back to ./.scorebook/stores if the home dir is unavailable.
func DefaultStoreRoot() string {
	if root := os.Getenv("SCOREBOOK_STORE_ROOT"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".scorebook", "stores")
	}
	return filepath.Join(home, ".scorebook", "stores")
}

// EncodeEnvPath encodes an environment ID for filesystem use.
// Replaces "/" with "__" for path-style IDs like "league/prod".
func EncodeEnvPath(env string) string {
	return strings.ReplaceAll(env, "/", "__")
}

// DecodeEnvPath decodes an encoded environment path back to its ID.
func DecodeEnvPath(encoded string) string {
	return strings.ReplaceAll(encoded, "__", "/")
}

// EnvDBPath returns the full path to an environment's database file.
// Example: EnvDBPath("league/prod") -> ~/.scorebook/stores/league__prod/scorebook.db
func EnvDBPath(env string) string {
	encoded := EncodeEnvPath(env)
	return filepath.Join(DefaultStoreRoot(), encoded, "scorebook.db")
}

// EnvInfo describes one environment store on disk.
type EnvInfo struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Reserved bool   `json:"reserved"`
}

// ListEnvs scans the store root and returns the environments that have a
// store directory, sorted by ID. A missing root means no environments.
func ListEnvs() ([]EnvInfo, error) {
	root := DefaultStoreRoot()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var envs []EnvInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := DecodeEnvPath(entry.Name())
		envs = append(envs, EnvInfo{
			ID:       id,
			Path:     filepath.Join(root, entry.Name(), "scorebook.db"),
			Reserved: IsReservedEnvID(id),
		})
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].ID < envs[j].ID })
	return envs, nil
}
