package filter

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

type state string

func resolver(keys ...string) Options {
	known := map[string]string{}
	for _, k := range keys {
		known[k] = k
	}
	known["Name"] = "name"
	return Options{Resolve: func(key string) (string, bool) {
		c, ok := known[key]
		return c, ok
	}}
}

func TestCompile(t *testing.T) {
	opts := resolver("name", "age", "score", "state")
	tests := []struct {
		name     string
		terms    []Term
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "empty",
			terms:   nil,
			wantSQL: "",
		},
		{
			name:     "single equality",
			terms:    []Term{Eq("name", "c")},
			wantSQL:  ` WHERE "name" = ?`,
			wantArgs: []any{"c"},
		},
		{
			name:     "property name resolves to column",
			terms:    []Term{Neq("Name", "u")},
			wantSQL:  ` WHERE "name" <> ?`,
			wantArgs: []any{"u"},
		},
		{
			name:     "implicit AND",
			terms:    []Term{Gt("age", 18), Lte("score", 1.5), Like("name", "c%")},
			wantSQL:  ` WHERE "age" > ? AND "score" <= ? AND "name" LIKE ?`,
			wantArgs: []any{int64(18), 1.5, "c%"},
		},
		{
			name:     "explicit OR",
			terms:    []Term{Eq("name", "a"), Or(), Eq("name", "b")},
			wantSQL:  ` WHERE "name" = ? OR "name" = ?`,
			wantArgs: []any{"a", "b"},
		},
		{
			name:     "NOT after predicate",
			terms:    []Term{Gte("age", 1), Not(), In("name", "a", "b")},
			wantSQL:  ` WHERE "age" >= ? AND NOT "name" IN (?, ?)`,
			wantArgs: []any{int64(1), "a", "b"},
		},
		{
			name:     "between",
			terms:    []Term{Between("age", 10, 20)},
			wantSQL:  ` WHERE "age" BETWEEN ? AND ?`,
			wantArgs: []any{int64(10), int64(20)},
		},
		{
			name:     "keys with unkeyed range",
			terms:    []Term{Keys("age"), Within(1, 2), Lt("score", 3)},
			wantSQL:  ` WHERE "age" BETWEEN ? AND ? AND "score" < ?`,
			wantArgs: []any{int64(1), int64(2), int64(3)},
		},
		{
			name:     "raw fragment",
			terms:    []Term{Eq("age", 3), Raw("OR length(name) > ?", 2)},
			wantSQL:  ` WHERE "age" = ? OR length(name) > ?`,
			wantArgs: []any{int64(3), int64(2)},
		},
		{
			name:     "raw alone",
			terms:    []Term{Raw(`"age" % 2 = ?`, 0)},
			wantSQL:  ` WHERE "age" % 2 = ?`,
			wantArgs: []any{int64(0)},
		},
		{
			name:     "raw opens the section",
			terms:    []Term{Raw("("), Eq("age", 1), Or(), Eq("age", 2), Raw(")"), OrderBy("name")},
			wantSQL:  ` WHERE ( "age" = ? OR "age" = ? ) ORDER BY "name" ASC`,
			wantArgs: []any{int64(1), int64(2)},
		},
		{
			name:     "raw before limit",
			terms:    []Term{Raw("name IS NOT NULL"), Limit(1)},
			wantSQL:  ` WHERE name IS NOT NULL LIMIT ?`,
			wantArgs: []any{1},
		},
		{
			name:     "leading NOT",
			terms:    []Term{Not(), Eq("age", 1)},
			wantSQL:  ` WHERE NOT "age" = ?`,
			wantArgs: []any{int64(1)},
		},
		{
			name:     "order and limit",
			terms:    []Term{Limit(5), OrderBy("age"), OrderByKeys(KeyOrder{"name", Desc}), Eq("state", state("on")), Limit(2)},
			wantSQL:  ` WHERE "state" = ? ORDER BY "age" ASC, "name" DESC LIMIT ?`,
			wantArgs: []any{"on", 2},
		},
		{
			name:     "order without filter",
			terms:    []Term{OrderBy("score", Desc)},
			wantSQL:  ` ORDER BY "score" DESC`,
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(tt.terms, opts)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got.SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", got.SQL, tt.wantSQL)
			}
			if len(got.Args) != 0 || len(tt.wantArgs) != 0 {
				if !reflect.DeepEqual(got.Args, tt.wantArgs) {
					t.Errorf("Args = %#v, want %#v", got.Args, tt.wantArgs)
				}
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	opts := resolver("age")
	tests := []struct {
		name  string
		terms []Term
		want  error
	}{
		{"unknown key", []Term{Eq("missing", 1)}, ErrUnknownKey},
		{"unknown order key", []Term{OrderBy("missing")}, ErrUnknownKey},
		{"negative limit", []Term{Limit(-1)}, ErrInvalidTerm},
		{"range without keys", []Term{Within(1, 2)}, ErrInvalidTerm},
		{"empty keys", []Term{Keys()}, ErrInvalidTerm},
		{"empty raw", []Term{Raw("  ")}, ErrInvalidTerm},
		{"bad order", []Term{OrderBy("age", Order("sideways"))}, ErrInvalidTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.terms, opts); !errors.Is(err, tt.want) {
				t.Errorf("Compile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValuesAreNeverEmbedded(t *testing.T) {
	hostile := `x'; DROP TABLE t; --`
	got, err := Compile([]Term{Eq("name", hostile)}, resolver("name"))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got.SQL != ` WHERE "name" = ?` || got.Args[0] != hostile {
		t.Errorf("Compile() = %q %v", got.SQL, got.Args)
	}
}

func TestNormalize(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 7

	if got := Normalize(ts); got != "2024-01-02 03:04:05.000" {
		t.Errorf("Normalize(time) = %v", got)
	}
	if got := Normalize(uint64(1) << 63); got != "9223372036854775808" {
		t.Errorf("Normalize(uint64) = %v", got)
	}
	if got, ok := Normalize(id).([]byte); !ok || len(got) != 16 || got[0] != 0x6b {
		t.Errorf("Normalize(uuid) = %v", got)
	}
	if got := Normalize(state("on")); got != "on" {
		t.Errorf("Normalize(enum) = %#v", got)
	}
	if got := Normalize(true); got != int64(1) {
		t.Errorf("Normalize(bool) = %#v", got)
	}
	if got := Normalize(&n); got != int64(7) {
		t.Errorf("Normalize(*int) = %#v", got)
	}
	if got := Normalize(nil); got != nil {
		t.Errorf("Normalize(nil) = %#v", got)
	}
	type opaque struct{ A int }
	if got := Normalize(opaque{1}); got != (opaque{1}) {
		t.Errorf("Normalize(struct) = %#v", got)
	}
}
