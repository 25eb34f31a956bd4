package scorebook

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// numericScale is the fixed decimal precision used for canonical numeric
// text. 1 and 1.0 both canonicalize to "1.0000".
const numericScale = 4

// Built-in entity names.
const (
	EntityLineups      = "lineups"
	EntityPlayerStats  = "player_stats"
	EntityTransactions = "transactions"
)

// Raw identity field names expected in collector payloads.
const (
	fieldEntityID        = "entity_id"
	fieldContainerID     = "container_id"
	fieldGameDate        = "game_date"
	fieldSourceTimestamp = "source_timestamp"
)

// EntitySchema declares which fields of an entity participate in change
// detection and how they are normalized.
type EntitySchema struct {
	Entity string

	// TrackedFields is the explicit, ordered list of semantically
	// significant fields. Volatile bookkeeping fields (timestamps,
	// row ids) never appear here.
	TrackedFields []string

	// NumericFields marks tracked fields normalized as fixed-precision
	// decimals. Diffs on these fields carry a computed delta.
	NumericFields map[string]bool

	// Defaults supplies values for tracked fields absent from the raw
	// payload. A tracked field with no default must be present.
	Defaults map[string]any
}

// IsNumeric reports whether a tracked field is numeric.
func (s *EntitySchema) IsNumeric(field string) bool {
	return s.NumericFields[field]
}

// Coerce validates a loose collector payload and shapes it into a Record.
// Identity fields are required; tracked fields fall back to Defaults or
// fail with *InvalidRecordError. Present-but-null tracked fields are kept
// as nil, which is distinct from the empty string.
func (s *EntitySchema) Coerce(raw map[string]any) (*Record, error) {
	key := IdentityKey{Entity: s.Entity}

	var err error
	if key.EntityID, err = s.identityField(raw, fieldEntityID); err != nil {
		return nil, err
	}
	if key.ContainerID, err = s.identityField(raw, fieldContainerID); err != nil {
		return nil, err
	}
	if key.GameDate, err = s.identityField(raw, fieldGameDate); err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", key.GameDate); err != nil {
		return nil, &InvalidRecordError{Entity: s.Entity, Field: fieldGameDate, Reason: "not a YYYY-MM-DD date"}
	}

	fields := make(map[string]any, len(s.TrackedFields))
	for _, name := range s.TrackedFields {
		v, present := raw[name]
		if !present {
			dflt, ok := s.Defaults[name]
			if !ok {
				return nil, &InvalidRecordError{Entity: s.Entity, Field: name, Reason: "required tracked field missing"}
			}
			v = dflt
		}
		canon, err := s.canonicalValue(name, v)
		if err != nil {
			return nil, err
		}
		fields[name] = canon
	}

	rec := &Record{Key: key, Fields: fields}
	if ts, ok := raw[fieldSourceTimestamp].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, &InvalidRecordError{Entity: s.Entity, Field: fieldSourceTimestamp, Reason: "not an RFC3339 timestamp"}
		}
		rec.SourceTimestamp = t
	}

	return rec, nil
}

func (s *EntitySchema) identityField(raw map[string]any, name string) (string, error) {
	v, ok := raw[name]
	if !ok || v == nil {
		return "", &InvalidRecordError{Entity: s.Entity, Field: name, Reason: "identity field missing"}
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", &InvalidRecordError{Entity: s.Entity, Field: name, Reason: "identity field must be a non-empty string"}
	}
	return str, nil
}

// canonicalValue normalizes one tracked field value. Result is nil or a
// canonical string; numerics use fixed-precision decimal text so that
// semantically equal values never produce different fingerprints.
func (s *EntitySchema) canonicalValue(name string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if s.IsNumeric(name) {
		d, err := toDecimal(v)
		if err != nil {
			return nil, &InvalidRecordError{Entity: s.Entity, Field: name, Reason: err.Error()}
		}
		return d.StringFixed(numericScale), nil
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case json.Number:
		return t.String(), nil
	case float64, float32, int, int32, int64:
		return fmt.Sprintf("%v", t), nil
	default:
		return nil, &InvalidRecordError{Entity: s.Entity, Field: name, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(t)
	case decimal.Decimal:
		return t, nil
	default:
		return decimal.Zero, fmt.Errorf("not numeric: %T", v)
	}
}

// SchemaRegistry maps entity names to their schemas. Registries are
// explicit values passed into the engine; there is no process-wide default.
type SchemaRegistry struct {
	schemas map[string]*EntitySchema
}

// NewSchemaRegistry returns a registry preloaded with the built-in
// lineups, player_stats, and transactions schemas.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[string]*EntitySchema)}
	r.Register(lineupsSchema())
	r.Register(playerStatsSchema())
	r.Register(transactionsSchema())
	return r
}

// Register adds or replaces a schema. Tracked fields are sorted so that
// callers never depend on declaration order.
func (r *SchemaRegistry) Register(s *EntitySchema) {
	fields := make([]string, len(s.TrackedFields))
	copy(fields, s.TrackedFields)
	sort.Strings(fields)
	s.TrackedFields = fields
	r.schemas[s.Entity] = s
}

// Get returns the schema for an entity, or ErrUnknownEntity.
func (r *SchemaRegistry) Get(entity string) (*EntitySchema, error) {
	s, ok := r.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return s, nil
}

// Entities returns registered entity names, sorted.
func (r *SchemaRegistry) Entities() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func playerStatsSchema() *EntitySchema {
	return &EntitySchema{
		Entity: EntityPlayerStats,
		TrackedFields: []string{
			"at_bats", "hits", "runs", "rbi", "home_runs",
			"stolen_bases", "walks", "strikeouts", "position",
		},
		NumericFields: map[string]bool{
			"at_bats": true, "hits": true, "runs": true, "rbi": true,
			"home_runs": true, "stolen_bases": true, "walks": true,
			"strikeouts": true,
		},
		Defaults: map[string]any{
			"at_bats": 0, "hits": 0, "runs": 0, "rbi": 0,
			"home_runs": 0, "stolen_bases": 0, "walks": 0,
			"strikeouts": 0,
		},
	}
}

func lineupsSchema() *EntitySchema {
	return &EntitySchema{
		Entity:        EntityLineups,
		TrackedFields: []string{"slot", "position", "status", "projected_points"},
		NumericFields: map[string]bool{"slot": true, "projected_points": true},
		Defaults:      map[string]any{"projected_points": 0},
	}
}

func transactionsSchema() *EntitySchema {
	return &EntitySchema{
		Entity:        EntityTransactions,
		TrackedFields: []string{"kind", "from_team", "to_team", "faab_bid", "status"},
		NumericFields: map[string]bool{"faab_bid": true},
		Defaults:      map[string]any{"faab_bid": 0, "from_team": nil, "to_team": nil},
	}
}
