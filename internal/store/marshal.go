package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/erpgate/internal/ir"
)

// marshalSnapshot converts a previous/next snapshot to canonical JSON TEXT.
// A nil object is stored as NULL.
func marshalSnapshot(obj ir.IRObject) (sql.NullString, error) {
	if obj == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalSnapshot parses canonical JSON TEXT back to an IRObject.
// Uses ir.IRObject.UnmarshalJSON so integral numbers come back as IRInt.
func unmarshalSnapshot(data sql.NullString) (ir.IRObject, error) {
	if !data.Valid {
		return nil, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data.String), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return obj, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
