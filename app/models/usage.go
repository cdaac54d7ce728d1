package models

import "time"

// DateLayout is the calendar-day key used for usage rows.
const DateLayout = "2006-01-02"

// UsageRecord holds one user's operation counts for one calendar day.
type UsageRecord struct {
	UserID          string         `db:"user_id" json:"userId"`
	Date            string         `db:"usage_date" json:"date"`
	TotalOperations int            `db:"total_operations" json:"totalOperations"`
	OperationCounts map[string]int `db:"operation_counts" json:"operationCounts"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
	// Version is bumped on every write; zero means no row exists yet.
	Version int64 `db:"version" json:"-"`
}

// Clone returns a copy that shares no map with r.
func (r UsageRecord) Clone() UsageRecord {
	out := r
	out.OperationCounts = make(map[string]int, len(r.OperationCounts))
	for k, v := range r.OperationCounts {
		out.OperationCounts[k] = v
	}
	return out
}
