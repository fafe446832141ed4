package rest

import (
	"time"

	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Indexes int    `json:"indexes"`
}

// CreateIndexRequest creates a named index.
type CreateIndexRequest struct {
	Name    string `json:"name"`
	KeyType string `json:"keyType"`
	Unique  bool   `json:"unique"`
}

// IndexResponse describes one index and its page statistics.
type IndexResponse struct {
	index.Info
	Mode  string       `json:"mode"`
	Stats *btree.Stats `json:"stats,omitempty"`
}

// IndexListResponse lists every index of the manager.
type IndexListResponse struct {
	Indexes []index.Info `json:"indexes"`
}

// EntryRequest is the body of entry writes. Key is ignored when the key
// is part of the path.
type EntryRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entry is one key/value pair of an index.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PutResponse reports whether an insert added a new entry.
type PutResponse struct {
	Inserted bool `json:"inserted"`
}

// SetResponse carries the value replaced by an upsert, if any.
type SetResponse struct {
	Replaced bool    `json:"replaced"`
	Previous *string `json:"previous,omitempty"`
}

// RemoveResponse carries the removed value.
type RemoveResponse struct {
	Removed bool   `json:"removed"`
	Value   string `json:"value,omitempty"`
}

// EntriesResponse is a page of scan results.
type EntriesResponse struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
	HasMore bool    `json:"hasMore"`
}

// ValuesResponse lists every value stored under one key.
type ValuesResponse struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// CountResponse carries an index size.
type CountResponse struct {
	Count int `json:"count"`
}

// RankResponse carries the position of a key in key order.
type RankResponse struct {
	Key  string `json:"key"`
	Rank int    `json:"rank"`
}

// LogQueryResponse represents a log query response.
type LogQueryResponse struct {
	Entries    []logging.Entry `json:"entries"`
	TotalCount int             `json:"total_count"`
	Offset     int             `json:"offset"`
	Limit      int             `json:"limit"`
	HasMore    bool            `json:"has_more"`
}

func uptime(since time.Time) string {
	return time.Since(since).Truncate(time.Second).String()
}
