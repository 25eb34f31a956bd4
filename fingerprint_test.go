package scorebook

import (
	"testing"
)

func statsSchema(t *testing.T) *EntitySchema {
	t.Helper()
	schema, err := NewSchemaRegistry().Get(EntityPlayerStats)
	if err != nil {
		t.Fatalf("get player_stats schema: %v", err)
	}
	return schema
}

func statsRecord(t *testing.T, raw map[string]any) *Record {
	t.Helper()
	rec, err := statsSchema(t).Coerce(raw)
	if err != nil {
		t.Fatalf("coerce record: %v", err)
	}
	return rec
}

func baseStatsRaw() map[string]any {
	return map[string]any{
		"entity_id":    "P1",
		"container_id": "L100",
		"game_date":    "2025-08-01",
		"position":     "SS",
		"at_bats":      4,
		"hits":         2,
		"runs":         1,
		"rbi":          1,
	}
}

func TestFingerprint_Stability(t *testing.T) {
	schema := statsSchema(t)
	rec := statsRecord(t, baseStatsRaw())

	first, err := Fingerprint(rec, schema)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := Fingerprint(rec, schema)
		if err != nil {
			t.Fatalf("Fingerprint repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("fingerprint changed between calls: %s != %s", again, first)
		}
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	schema := statsSchema(t)
	base := statsRecord(t, baseStatsRaw())

	baseFP, err := Fingerprint(base, schema)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	for _, field := range schema.TrackedFields {
		raw := baseStatsRaw()
		if schema.IsNumeric(field) {
			raw[field] = 99
		} else {
			raw[field] = "DH"
		}
		changed := statsRecord(t, raw)

		fp, err := Fingerprint(changed, schema)
		if err != nil {
			t.Fatalf("Fingerprint with %s changed: %v", field, err)
		}
		if fp == baseFP {
			t.Errorf("changing %s did not change fingerprint", field)
		}
	}
}

func TestFingerprint_NumericNormalization(t *testing.T) {
	schema := statsSchema(t)

	intRaw := baseStatsRaw()
	intRaw["hits"] = 1
	floatRaw := baseStatsRaw()
	floatRaw["hits"] = 1.0

	intFP, err := Fingerprint(statsRecord(t, intRaw), schema)
	if err != nil {
		t.Fatalf("Fingerprint int: %v", err)
	}
	floatFP, err := Fingerprint(statsRecord(t, floatRaw), schema)
	if err != nil {
		t.Fatalf("Fingerprint float: %v", err)
	}

	if intFP != floatFP {
		t.Errorf("1 and 1.0 produced different fingerprints: %s != %s", intFP, floatFP)
	}
}

func TestFingerprint_NullDistinctFromEmpty(t *testing.T) {
	schema := statsSchema(t)

	nullRaw := baseStatsRaw()
	nullRaw["position"] = nil
	emptyRaw := baseStatsRaw()
	emptyRaw["position"] = ""

	nullFP, err := Fingerprint(statsRecord(t, nullRaw), schema)
	if err != nil {
		t.Fatalf("Fingerprint null: %v", err)
	}
	emptyFP, err := Fingerprint(statsRecord(t, emptyRaw), schema)
	if err != nil {
		t.Fatalf("Fingerprint empty: %v", err)
	}

	if nullFP == emptyFP {
		t.Error("null and empty string produced the same fingerprint")
	}
}

func TestFingerprint_MissingTrackedField(t *testing.T) {
	schema := statsSchema(t)
	rec := statsRecord(t, baseStatsRaw())
	delete(rec.Fields, "position") // no default configured

	_, err := Fingerprint(rec, schema)
	if err == nil {
		t.Fatal("expected error for missing tracked field without default")
	}
	invalid, ok := err.(*InvalidRecordError)
	if !ok {
		t.Fatalf("expected *InvalidRecordError, got %T", err)
	}
	if invalid.Field != "position" {
		t.Errorf("error field = %q, want %q", invalid.Field, "position")
	}
}

func TestFingerprint_MissingFieldWithDefault(t *testing.T) {
	schema := statsSchema(t)
	rec := statsRecord(t, baseStatsRaw())
	delete(rec.Fields, "walks") // default 0 configured

	fp, err := Fingerprint(rec, schema)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	full := statsRecord(t, baseStatsRaw())
	fullFP, err := Fingerprint(full, schema)
	if err != nil {
		t.Fatalf("Fingerprint full: %v", err)
	}
	if fp != fullFP {
		t.Error("defaulted field produced a different fingerprint than explicit zero")
	}
}
