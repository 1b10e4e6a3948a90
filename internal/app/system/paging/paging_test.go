package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestLimit(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"absent", "/x", 20},
		{"valid", "/x?limit=5", 5},
		{"not a number", "/x?limit=lots", 20},
		{"zero", "/x?limit=0", 20},
		{"negative", "/x?limit=-3", 20},
		{"clamped", "/x?limit=5000", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if got := Limit(r, 20, 100); got != tt.want {
				t.Errorf("Limit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFlag(t *testing.T) {
	for url, want := range map[string]bool{
		"/x":             false,
		"/x?unread=1":    true,
		"/x?unread=true": true,
		"/x?unread=no":   false,
	} {
		r := httptest.NewRequest("GET", url, nil)
		if got := Flag(r, "unread"); got != want {
			t.Errorf("Flag(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestTrimPage(t *testing.T) {
	const size = 3
	tests := []struct {
		name       string
		rows       []int
		req        Request
		wantRows   []int
		wantResult Result
	}{
		{"first page with no extra", []int{1, 2}, Request{Size: size}, []int{1, 2}, Result{}},
		{"first page with extra", []int{1, 2, 3, 4}, Request{Size: size}, []int{1, 2, 3}, Result{HasNext: true}},
		{"forward page with extra", []int{1, 2, 3, 4}, Request{After: "c", Size: size}, []int{1, 2, 3}, Result{HasPrev: true, HasNext: true}},
		{"forward page without extra", []int{1, 2}, Request{After: "c", Size: size}, []int{1, 2}, Result{HasPrev: true}},
		{"backward page with extra", []int{4, 3, 2, 1}, Request{Before: "c", Size: size}, []int{3, 2, 1}, Result{HasPrev: true, HasNext: true}},
		{"backward page without extra", []int{2, 1}, Request{Before: "c", Size: size}, []int{2, 1}, Result{HasNext: true}},
		{"empty rows", []int{}, Request{Size: size}, []int{}, Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([]int(nil), tt.rows...)
			got := TrimPage(&rows, tt.req)

			if len(rows) != len(tt.wantRows) {
				t.Fatalf("TrimPage() rows = %v, want %v", rows, tt.wantRows)
			}
			for i := range rows {
				if rows[i] != tt.wantRows[i] {
					t.Errorf("TrimPage() rows = %v, want %v", rows, tt.wantRows)
					break
				}
			}
			if got != tt.wantResult {
				t.Errorf("TrimPage() = %+v, want %+v", got, tt.wantResult)
			}
		})
	}
}

func TestParse(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?after=abc&limit=10", nil)
	got := Parse(r)
	if got.After != "abc" || got.Before != "" || got.Size != 10 {
		t.Errorf("Parse() = %+v", got)
	}
}

func TestKeyset(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantDir   Direction
		wantOrder int
	}{
		{"first page", Request{}, Forward, 1},
		{"after cursor", Request{After: "somecursor"}, Forward, 1},
		{"before cursor", Request{Before: "somecursor"}, Backward, -1},
		{"before takes precedence", Request{Before: "b", After: "a"}, Backward, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Keyset()
			if got.Direction != tt.wantDir {
				t.Errorf("Keyset() Direction = %v, want %v", got.Direction, tt.wantDir)
			}
			if got.SortOrder != tt.wantOrder {
				t.Errorf("Keyset() SortOrder = %v, want %v", got.SortOrder, tt.wantOrder)
			}
			if got.Size != PageSize {
				t.Errorf("Keyset() Size = %d, want %d", got.Size, PageSize)
			}
		})
	}
}

func TestApplyToFind_LooksAhead(t *testing.T) {
	find := options.Find()
	Request{Size: 7}.Keyset().ApplyToFind(find, "full_name_ci")
	if find.Limit == nil || *find.Limit != 8 {
		t.Errorf("limit = %v, want 8", find.Limit)
	}
}

func TestKeysetWindow_NoCursor(t *testing.T) {
	if w := (Request{}).Keyset().KeysetWindow("full_name_ci"); w != nil {
		t.Errorf("KeysetWindow() = %v, want nil", w)
	}
}

func TestReverse(t *testing.T) {
	tests := []struct {
		name  string
		input []int
		want  []int
	}{
		{"empty", []int{}, []int{}},
		{"single", []int{1}, []int{1}},
		{"two", []int{1, 2}, []int{2, 1}},
		{"three", []int{1, 2, 3}, []int{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([]int(nil), tt.input...)
			Reverse(rows)
			for i, v := range rows {
				if v != tt.want[i] {
					t.Errorf("Reverse() got %v, want %v", rows, tt.want)
					break
				}
			}
		})
	}
}

func TestSetCursors(t *testing.T) {
	type item struct {
		Key string
		ID  primitive.ObjectID
	}
	key := func(i item) string { return i.Key }
	id := func(i item) primitive.ObjectID { return i.ID }

	t.Run("empty rows", func(t *testing.T) {
		res := Result{HasPrev: true, HasNext: true}
		SetCursors(&res, []item{}, key, id)
		if res.Prev != "" || res.Next != "" {
			t.Errorf("SetCursors(empty) = %+v", res)
		}
	})

	t.Run("only where a page exists", func(t *testing.T) {
		rows := []item{{"first", primitive.NewObjectID()}, {"last", primitive.NewObjectID()}}
		res := Result{HasNext: true}
		SetCursors(&res, rows, key, id)
		if res.Prev != "" {
			t.Errorf("Prev = %q, want empty", res.Prev)
		}
		if res.Next == "" {
			t.Error("Next is empty")
		}
	})

	t.Run("distinct cursors", func(t *testing.T) {
		rows := []item{{"first", primitive.NewObjectID()}, {"last", primitive.NewObjectID()}}
		res := Result{HasPrev: true, HasNext: true}
		SetCursors(&res, rows, key, id)
		if res.Prev == "" || res.Next == "" || res.Prev == res.Next {
			t.Errorf("SetCursors() = %+v", res)
		}
	})
}
