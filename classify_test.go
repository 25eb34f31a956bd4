package scorebook

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	meta := &MetadataEntry{Fingerprint: "h1"}

	tests := []struct {
		name        string
		meta        *MetadataEntry
		fingerprint string
		want        Classification
	}{
		{"never observed", nil, "h1", ClassNew},
		{"same fingerprint", meta, "h1", ClassUnchanged},
		{"different fingerprint", meta, "h2", ClassModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.meta, tt.fingerprint); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff_Completeness(t *testing.T) {
	schema := statsSchema(t)
	old := statsRecord(t, baseStatsRaw())

	raw := baseStatsRaw()
	raw["hits"] = 3
	raw["rbi"] = 2
	updated := statsRecord(t, raw)

	diff := Diff(old, updated, schema)

	if len(diff) != 2 {
		t.Fatalf("diff has %d entries, want 2: %+v", len(diff), diff)
	}

	byField := make(map[string]FieldChange)
	for _, c := range diff {
		byField[c.Field] = c
	}

	hits, ok := byField["hits"]
	if !ok {
		t.Fatal("diff missing hits")
	}
	if hits.Delta != "1" {
		t.Errorf("hits delta = %q, want %q", hits.Delta, "1")
	}

	rbi, ok := byField["rbi"]
	if !ok {
		t.Fatal("diff missing rbi")
	}
	if rbi.Delta != "1" {
		t.Errorf("rbi delta = %q, want %q", rbi.Delta, "1")
	}
}

func TestDiff_IdenticalRecords(t *testing.T) {
	schema := statsSchema(t)
	a := statsRecord(t, baseStatsRaw())
	b := statsRecord(t, baseStatsRaw())

	if diff := Diff(a, b, schema); len(diff) != 0 {
		t.Errorf("identical records produced diff: %+v", diff)
	}
}

func TestDiff_NullTransition(t *testing.T) {
	schema := statsSchema(t)
	old := statsRecord(t, baseStatsRaw())

	raw := baseStatsRaw()
	raw["position"] = nil
	updated := statsRecord(t, raw)

	diff := Diff(old, updated, schema)
	if len(diff) != 1 {
		t.Fatalf("diff has %d entries, want 1: %+v", len(diff), diff)
	}
	if diff[0].Field != "position" {
		t.Errorf("diff field = %q, want position", diff[0].Field)
	}
	if diff[0].NewValue != nil {
		t.Errorf("new value = %v, want nil", diff[0].NewValue)
	}
	if diff[0].Delta != "" {
		t.Errorf("non-numeric field carried delta %q", diff[0].Delta)
	}
}

func TestSortBatch(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)

	early := statsRecord(t, baseStatsRaw())
	early.SourceTimestamp = t2
	late := statsRecord(t, baseStatsRaw())
	late.SourceTimestamp = t1

	batch := []*Record{early, late}
	SortBatch(batch)

	if !batch[0].SourceTimestamp.Equal(t1) {
		t.Error("batch not sorted by source timestamp")
	}
	if !batch[1].SourceTimestamp.Equal(t2) {
		t.Error("later observation should sort last (and win on apply)")
	}
}

func TestSortBatch_DateOrderBeatsTimestamp(t *testing.T) {
	laterDate := baseStatsRaw()
	laterDate["game_date"] = "2025-08-02"
	earlierDate := baseStatsRaw()
	earlierDate["entity_id"] = "P2"
	earlierDate["game_date"] = "2025-08-01"

	first := statsRecord(t, laterDate)
	first.SourceTimestamp = time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC)
	second := statsRecord(t, earlierDate)
	second.SourceTimestamp = time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)

	batch := []*Record{first, second}
	SortBatch(batch)

	// Dates run forward regardless of timestamps, so the date-cursor
	// checkpoint can never point past an unattempted record.
	if batch[0].Key.GameDate != "2025-08-01" || batch[1].Key.GameDate != "2025-08-02" {
		t.Errorf("batch order = [%s, %s], want dates ascending",
			batch[0].Key.GameDate, batch[1].Key.GameDate)
	}
}
