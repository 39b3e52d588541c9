package store

import (
	"context"
	"errors"
	"fmt"

	"flashdetail/internal/chip"
)

// FieldOp is an administrative edit of one field of a record's data.
type FieldOp string

const (
	OpAdd     FieldOp = "add"
	OpReplace FieldOp = "replace"
	OpRemove  FieldOp = "remove"
)

// ErrFieldExists is returned by OpAdd when the field is already present.
var ErrFieldExists = errors.New("store: field already exists")

// ParseFieldOp validates an operation name.
func ParseFieldOp(s string) (FieldOp, error) {
	switch op := FieldOp(s); op {
	case OpAdd, OpReplace, OpRemove:
		return op, nil
	}
	return "", fmt.Errorf("unsupported field operation %q (want add, replace or remove)", s)
}

// EditField applies op to field of the record at (table, key) in one
// atomic update.
//
// add and replace create the record when it is missing; add refuses to
// overwrite an existing field. remove fails when the record or field is
// missing, and deletes the record once its last field is gone. The returned
// bool reports whether the record was deleted.
func EditField(ctx context.Context, st Store, table, key string, op FieldOp, field string, value any) (bool, error) {
	var deleted bool
	err := st.Update(ctx, table, key, func(rec *Record, exists bool) (bool, error) {
		deleted = false
		if rec.Data == nil {
			rec.Data = chip.Attributes{}
		}

		switch op {
		case OpAdd:
			if _, ok := rec.Data[field]; ok {
				return false, fmt.Errorf("%w: %s.%s has %s", ErrFieldExists, table, NormalizeKey(key), field)
			}
			rec.Data[field] = value
		case OpReplace:
			rec.Data[field] = value
		case OpRemove:
			if !exists {
				return false, fmt.Errorf("%w: %s.%s", ErrNotFound, table, NormalizeKey(key))
			}
			if _, ok := rec.Data[field]; !ok {
				return false, fmt.Errorf("%w: %s.%s has no field %s", ErrNotFound, table, NormalizeKey(key), field)
			}
			delete(rec.Data, field)
			if len(rec.Data) == 0 {
				deleted = true
				return true, nil
			}
		default:
			return false, fmt.Errorf("unsupported field operation %q", op)
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
