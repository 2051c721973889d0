package domain

import (
	"fmt"
	"time"
)

// Record is one store's metric snapshot for one logical day, as extracted
// from an intercepted portal response. Records are immutable once persisted.
type Record struct {
	Values map[string]any
}

// RawID returns the portal's own record identifier, trying the spellings the
// portal has been observed to use.
func (r Record) RawID() string {
	for _, key := range []string{"ID", "id", FieldRawID} {
		if v, ok := r.Values[key]; ok {
			if s := fmt.Sprintf("%v", v); s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return ""
}

// DisplayName returns the store display name, markup included.
func (r Record) DisplayName() string {
	if v, ok := r.Values[FieldDisplayName]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// PageInfo is the pagination envelope of a portal response.
type PageInfo struct {
	Total    int  `json:"total"`
	PageSize int  `json:"pageSize"`
	PageNo   int  `json:"pageNo"`
	HasMore  bool `json:"hasMore"`
}

// TotalPages derives the page count; zero when the page size is unknown.
func (p PageInfo) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Page is one intercepted result page.
type Page struct {
	Records []Record
	Info    PageInfo
}

// ShardKey identifies one physical day shard grouped under its month.
type ShardKey struct {
	Month string // "2006-01"
	Day   string // "2006-01-02"
}

// ShardKeyFor maps a query date to its shard.
func ShardKeyFor(date time.Time) ShardKey {
	return ShardKey{
		Month: date.Format("2006-01"),
		Day:   date.Format("2006-01-02"),
	}
}

// QueryParams selects rows from one day shard.
type QueryParams struct {
	Date       time.Time
	NameFilter string
	Page       int
	PageSize   int
}

// QueryResult is a paginated slice of one shard in insertion order.
type QueryResult struct {
	Rows       []Record
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// MonthInfo summarizes one month container.
type MonthInfo struct {
	Month     string
	Shards    int
	SizeBytes int64
}

// StoreInfo summarizes the whole store.
type StoreInfo struct {
	BaseDir   string
	Months    []MonthInfo
	Shards    int
	SizeBytes int64
}

// RunResult is what an ingestion run always reports, success or not.
type RunResult struct {
	RunID    string
	Success  bool
	Message  string
	Inserted int
}
