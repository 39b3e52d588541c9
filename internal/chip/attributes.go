// Package chip holds the attribute model shared by the local decoder, the
// remote decode services and the cache.
package chip

import (
	"fmt"
	"sort"
	"strings"
)

// Field names a known attribute. Remote services may return fields outside
// this set; they are carried through untouched.
type Field string

const (
	FieldID          Field = "id"
	FieldVendor      Field = "vendor"
	FieldDensity     Field = "density"
	FieldDie         Field = "die"
	FieldCellLevel   Field = "cellLevel"
	FieldPageSize    Field = "pageSize"
	FieldBlockSize   Field = "blockSize"
	FieldPlane       Field = "plane"
	FieldTotalPlane  Field = "totalPlane"
	FieldProcessNode Field = "processNode"
	FieldPartNumber  Field = "partNumber"
	FieldType        Field = "type"
	FieldWidth       Field = "width"
	FieldVoltage     Field = "voltage"
	FieldGeneration  Field = "generation"
	FieldPackage     Field = "package"
	FieldCapacity    Field = "capacity"
	FieldURL         Field = "url"
	FieldURLs        Field = "urls"
)

// Unknown marks a field the decoder could not determine.
const Unknown = "unknown"

// legacy marker written by older cache files
const unknownLegacy = "未知"

// transient fields are never persisted
var transientFields = []Field{FieldURL, FieldURLs}

// IsUnknown reports whether v carries no information.
func IsUnknown(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, Unknown) || s == unknownLegacy
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Attributes is the resolved description of a part. Values are whatever the
// source produced: strings for locally decoded fields, arbitrary JSON values
// for remote ones.
type Attributes map[string]any

// Set stores v under f.
func (a Attributes) Set(f Field, v any) {
	a[string(f)] = v
}

// Get returns the value of f unless it is absent or unknown.
func (a Attributes) Get(f Field) (any, bool) {
	v, ok := a[string(f)]
	if !ok || IsUnknown(v) {
		return nil, false
	}
	return v, true
}

// String returns f as text unless it is absent or unknown.
func (a Attributes) String(f Field) (string, bool) {
	v, ok := a.Get(f)
	if !ok {
		return "", false
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Known returns the names of fields that carry information, sorted.
func (a Attributes) Known() []string {
	names := make([]string, 0, len(a))
	for k, v := range a {
		if !IsUnknown(v) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Meaningful reports whether a carries enough known fields to be worth
// presenting and caching.
func (a Attributes) Meaningful() bool {
	return len(a.Known()) >= 2
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Persistable returns a copy without request-scoped fields and without
// fields whose value is unknown.
func (a Attributes) Persistable() Attributes {
	out := a.Clone()
	if out == nil {
		out = Attributes{}
	}
	for _, f := range transientFields {
		delete(out, string(f))
	}
	for k, v := range out {
		if IsUnknown(v) {
			delete(out, k)
		}
	}
	return out
}
