package scorebook

import (
	"errors"
	"testing"
	"time"
)

func TestSchemaRegistry_BuiltIns(t *testing.T) {
	registry := NewSchemaRegistry()

	for _, entity := range []string{EntityLineups, EntityPlayerStats, EntityTransactions} {
		if _, err := registry.Get(entity); err != nil {
			t.Errorf("built-in schema %s missing: %v", entity, err)
		}
	}

	if _, err := registry.Get("standings"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("unknown entity error = %v, want ErrUnknownEntity", err)
	}
}

func TestCoerce_IdentityAndTimestamp(t *testing.T) {
	raw := baseStatsRaw()
	raw["source_timestamp"] = "2025-08-01T18:30:00Z"

	rec := statsRecord(t, raw)

	want := IdentityKey{
		Entity:      EntityPlayerStats,
		EntityID:    "P1",
		ContainerID: "L100",
		GameDate:    "2025-08-01",
	}
	if rec.Key != want {
		t.Errorf("key = %+v, want %+v", rec.Key, want)
	}

	wantTS := time.Date(2025, 8, 1, 18, 30, 0, 0, time.UTC)
	if !rec.SourceTimestamp.Equal(wantTS) {
		t.Errorf("source timestamp = %v, want %v", rec.SourceTimestamp, wantTS)
	}
}

func TestCoerce_NumericCanonicalization(t *testing.T) {
	rec := statsRecord(t, baseStatsRaw())

	if got := rec.Fields["hits"]; got != "2.0000" {
		t.Errorf("hits = %v, want canonical %q", got, "2.0000")
	}
}

func TestCoerce_DefaultsApplied(t *testing.T) {
	raw := baseStatsRaw()
	delete(raw, "walks")

	rec := statsRecord(t, raw)

	if got := rec.Fields["walks"]; got != "0.0000" {
		t.Errorf("defaulted walks = %v, want %q", got, "0.0000")
	}
}

func TestCoerce_Errors(t *testing.T) {
	schema := statsSchema(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing entity_id", func(m map[string]any) { delete(m, "entity_id") }, "entity_id"},
		{"empty container_id", func(m map[string]any) { m["container_id"] = "" }, "container_id"},
		{"bad game_date", func(m map[string]any) { m["game_date"] = "08/01/2025" }, "game_date"},
		{"missing required tracked field", func(m map[string]any) { delete(m, "position") }, "position"},
		{"non-numeric stat", func(m map[string]any) { m["hits"] = "two" }, "hits"},
		{"bad timestamp", func(m map[string]any) { m["source_timestamp"] = "late afternoon" }, "source_timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := baseStatsRaw()
			tt.mutate(raw)

			_, err := schema.Coerce(raw)
			var invalid *InvalidRecordError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want *InvalidRecordError", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("error field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestCoerce_NullTrackedField(t *testing.T) {
	raw := baseStatsRaw()
	raw["position"] = nil

	rec := statsRecord(t, raw)

	v, present := rec.Fields["position"]
	if !present {
		t.Fatal("null field should be present in coerced record")
	}
	if v != nil {
		t.Errorf("null field = %v, want nil", v)
	}
}

func TestRegister_SortsTrackedFields(t *testing.T) {
	registry := NewSchemaRegistry()
	registry.Register(&EntitySchema{
		Entity:        "standings",
		TrackedFields: []string{"wins", "losses", "games_back"},
		NumericFields: map[string]bool{"wins": true, "losses": true, "games_back": true},
	})

	schema, err := registry.Get("standings")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	want := []string{"games_back", "losses", "wins"}
	for i, field := range want {
		if schema.TrackedFields[i] != field {
			t.Fatalf("tracked fields = %v, want %v", schema.TrackedFields, want)
		}
	}
}
