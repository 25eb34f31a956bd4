package scorebook

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Classify compares a record's fingerprint against its last-known
// metadata. A nil meta means the identity key has never been observed.
func Classify(meta *MetadataEntry, fingerprint string) Classification {
	if meta == nil {
		return ClassNew
	}
	if meta.Fingerprint == fingerprint {
		return ClassUnchanged
	}
	return ClassModified
}

// Diff compares every tracked field of two observations pairwise and
// returns exactly the fields whose values differ. Stat sources correct
// individual fields retroactively (an RBI revision, say) without touching
// the rest, and the audit trail must show which fields moved and by how
// much, so this never guesses from the fingerprint alone. Numeric fields
// carry a computed delta.
func Diff(old, new *Record, schema *EntitySchema) []FieldChange {
	var changes []FieldChange
	for _, name := range schema.TrackedFields {
		oldV := old.Fields[name]
		newV := new.Fields[name]
		if canonicalText(oldV) == canonicalText(newV) {
			continue
		}

		change := FieldChange{Field: name, OldValue: oldV, NewValue: newV}
		if schema.IsNumeric(name) {
			if delta, ok := numericDelta(oldV, newV); ok {
				change.Delta = delta.String()
			}
		}
		changes = append(changes, change)
	}
	return changes
}

// numericDelta computes new-old for a canonical numeric pair. Reports
// false when either side is null or not parseable as a decimal.
func numericDelta(oldV, newV any) (decimal.Decimal, bool) {
	if oldV == nil || newV == nil {
		return decimal.Zero, false
	}
	oldD, err := toDecimal(oldV)
	if err != nil {
		return decimal.Zero, false
	}
	newD, err := toDecimal(newV)
	if err != nil {
		return decimal.Zero, false
	}
	return newD.Sub(oldD), true
}

// SortBatch orders records for ingestion: game date first, so that the
// job checkpoint (a date cursor) only ever moves forward through the
// batch, then source timestamp and identity key so that last-write-wins
// within a batch is deterministic rather than an accident of collector
// ordering. Duplicate identity keys share a game date, so the later
// observation still lands last; callers that cannot supply source
// timestamps inherit the collector's ordering for same-date duplicates,
// a known limitation of last-write-wins resolution.
func SortBatch(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Key.GameDate != records[j].Key.GameDate {
			return records[i].Key.GameDate < records[j].Key.GameDate
		}
		if !records[i].SourceTimestamp.Equal(records[j].SourceTimestamp) {
			return records[i].SourceTimestamp.Before(records[j].SourceTimestamp)
		}
		return records[i].Key.String() < records[j].Key.String()
	})
}
