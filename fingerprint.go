package scorebook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// nullSentinel stands in for absent/null tracked values in the canonical
// form. The NUL prefix keeps it distinct from any real field value,
// including the empty string.
const nullSentinel = "\x00null"

// Fingerprint computes the content digest of a record's tracked fields.
// It is pure and deterministic: fields are hashed in sorted name order
// regardless of map iteration, and numeric values are assumed already
// canonicalized by EntitySchema.Coerce. A required tracked field missing
// from the record fails with *InvalidRecordError.
func Fingerprint(rec *Record, schema *EntitySchema) (string, error) {
	names := make([]string, len(schema.TrackedFields))
	copy(names, schema.TrackedFields)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v, ok := rec.Fields[name]
		if !ok {
			if dflt, has := schema.Defaults[name]; has {
				canon, err := schema.canonicalValue(name, dflt)
				if err != nil {
					return "", err
				}
				v = canon
			} else {
				return "", &InvalidRecordError{Entity: schema.Entity, Field: name, Reason: "required tracked field missing"}
			}
		}

		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(canonicalText(v))
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalText renders one canonical field value for hashing and diffing.
// Coerce guarantees values are nil or canonical strings.
func canonicalText(v any) string {
	if v == nil {
		return nullSentinel
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
