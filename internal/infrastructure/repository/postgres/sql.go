package postgres

import (
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
)

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

func int64PtrToNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullToInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func timePtrToNull(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullToTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	value := v.Time
	return &value
}

// encodeJSONMap stores nil and empty maps as SQL NULL so the jsonb
// column stays sparse.
func encodeJSONMap(m map[string]string) sql.NullString {
	if len(m) == 0 {
		return sql.NullString{}
	}
	raw, err := sonic.Marshal(m)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func decodeJSONMap(v sql.NullString) map[string]string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var m map[string]string
	if err := sonic.Unmarshal([]byte(v.String), &m); err != nil {
		return nil
	}
	return m
}
