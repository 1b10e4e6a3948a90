// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// MaxPageSize caps a caller-supplied ?limit=.
const MaxPageSize = 200

// Limit parses ?limit= and clamps it to 1..max, returning def when the
// parameter is absent or not a number.
func Limit(r *http.Request, def, max int) int {
	s := query.Get(r, "limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Flag reports whether a boolean query parameter is set ("1", "true", "yes").
func Flag(r *http.Request, name string) bool {
	switch strings.ToLower(query.Get(r, name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Request is a keyset page request read from ?before=, ?after= and ?limit=.
type Request struct {
	Before string
	After  string
	Size   int
}

// Parse reads a page request from the URL.
func Parse(r *http.Request) Request {
	return Request{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
		Size:   Limit(r, PageSize, MaxPageSize),
	}
}

// Result is the page envelope returned alongside the rows.
type Result struct {
	HasPrev bool   `json:"has_prev"`
	HasNext bool   `json:"has_next"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
}

// TrimPage trims rows fetched with a limit of Size+1.
//
// When going backwards (Before != ""):
//   - If len > Size, trim the first element (older page exists)
//   - HasNext is always true (we came from somewhere)
//
// When going forwards or on first page:
//   - If len > Size, trim to Size (next page exists)
//   - HasPrev is true only if After != ""
func TrimPage[T any](rows *[]T, req Request) Result {
	size := req.Size
	if size <= 0 {
		size = PageSize
	}
	orig := len(*rows)
	var res Result

	if req.Before != "" {
		if orig > size {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
	} else {
		if orig > size {
			*rows = (*rows)[:size]
			res.HasNext = true
		}
		res.HasPrev = req.After != ""
	}
	return res
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // sort ascending, "gt" cursor
	Backward                  // sort descending, "lt" cursor
)

// KeysetConfig holds the decoded cursor and sort direction of a request.
type KeysetConfig struct {
	Direction Direction
	SortOrder int
	Size      int
	Cursor    *wafflemongo.Cursor
}

// Keyset determines pagination direction and decodes the cursor.
func (req Request) Keyset() KeysetConfig {
	cfg := KeysetConfig{Direction: Forward, SortOrder: 1, Size: req.Size}
	if cfg.Size <= 0 {
		cfg.Size = PageSize
	}

	if req.Before != "" {
		cfg.Direction = Backward
		cfg.SortOrder = -1
		if c, ok := wafflemongo.DecodeCursor(req.Before); ok {
			cfg.Cursor = &c
		}
	} else if req.After != "" {
		if c, ok := wafflemongo.DecodeCursor(req.After); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// ApplyToFind sets sort and a Size+1 look-ahead limit on find.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(int64(cfg.Size + 1))
}

// KeysetWindow returns the cursor condition for the query filter, or nil
// without a cursor.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Reverse reverses a slice in place. Call it after a backward fetch to
// restore display order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// SetCursors fills res.Prev and res.Next from the first and last rows.
func SetCursors[T any](res *Result, rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) {
	if len(rows) == 0 {
		return
	}
	first, last := rows[0], rows[len(rows)-1]
	if res.HasPrev {
		res.Prev = wafflemongo.EncodeCursor(keyFn(first), idFn(first))
	}
	if res.HasNext {
		res.Next = wafflemongo.EncodeCursor(keyFn(last), idFn(last))
	}
}
