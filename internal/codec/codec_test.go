package codec

import (
	"errors"
	"math"
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/storage"
	"github.com/nerrad567/graystore/internal/typeinfo"
)

type level uint8

type address struct {
	Street string
	Number int
}

type Meta struct {
	Source string
}

type sample struct {
	*Meta
	Name      string
	Count     int64
	Big       uint64
	Ratio     float32
	Enabled   bool
	Level     level
	Note      *string
	Missing   *int
	Addr      netip.Addr
	Position  [3]float64
	Corners   [2]*address
	Tags      []string
	Scores    map[string]int
	Home      address
	ID        uuid.UUID
	CreatedAt time.Time
}

type harness struct {
	codec   *Codec
	fields  []typeinfo.Field
	mapping *naming.Mapping
}

func newHarness(t *testing.T, typ reflect.Type, strict bool) harness {
	t.Helper()
	types := typeinfo.NewCache()
	fields, err := types.Describe(typ)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	m, err := naming.Build(fields)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return harness{codec: New(types, strict), fields: fields, mapping: m}
}

func native(row Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v.Native()
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := newHarness(t, reflect.TypeFor[sample](), true)
	note := "hello"
	in := sample{
		Meta:      &Meta{Source: "sensor"},
		Name:      "probe",
		Count:     math.MinInt64,
		Big:       math.MaxUint64,
		Ratio:     0.25,
		Enabled:   true,
		Level:     3,
		Note:      &note,
		Addr:      netip.MustParseAddr("192.168.1.20"),
		Position:  [3]float64{1.5, -2, 1e300},
		Corners:   [2]*address{{Street: "Main", Number: 1}, nil},
		Tags:      []string{"a", "b"},
		Scores:    map[string]int{"x": 1},
		Home:      address{Street: "High", Number: 42},
		ID:        uuid.New(),
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
	}

	row, err := h.codec.Encode("sample", h.fields, h.mapping, reflect.ValueOf(in))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, ok := row["Missing"]; ok {
		t.Error("nil optional field should not produce a column value")
	}
	if row["Big"] != storage.Text("18446744073709551615") {
		t.Errorf("Big = %#v, want decimal text", row["Big"])
	}
	if row["Level"] != storage.Integer(3) {
		t.Errorf("Level = %#v, want Integer(3)", row["Level"])
	}

	var out sample
	if err := h.codec.Decode("sample", h.fields, h.mapping, native(row), reflect.ValueOf(&out).Elem()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", out, in)
	}
}

func TestDecodeLenient(t *testing.T) {
	h := newHarness(t, reflect.TypeFor[sample](), false)
	row := map[string]any{
		"Name":   "kept",
		"Count":  "not a number",
		"Level":  int64(999),
		"Tags":   "{broken",
		"Home":   nil,
		"Source": "embedded",
		"Other":  int64(1),
	}
	var out sample
	if err := h.codec.Decode("sample", h.fields, h.mapping, row, reflect.ValueOf(&out).Elem()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.Name != "kept" {
		t.Errorf("Name = %q, want kept", out.Name)
	}
	if out.Count != 0 || out.Level != 0 || out.Tags != nil {
		t.Errorf("undecodable fields should stay zero: %+v", out)
	}
	if out.Meta == nil || out.Meta.Source != "embedded" {
		t.Errorf("embedded pointer field = %+v, want allocated with Source", out.Meta)
	}
}

func TestDecodeStrict(t *testing.T) {
	h := newHarness(t, reflect.TypeFor[sample](), true)
	row := map[string]any{"Level": int64(999)}
	var out sample
	err := h.codec.Decode("sample", h.fields, h.mapping, row, reflect.ValueOf(&out).Elem())
	if !errors.Is(err, ErrDecodeProperty) {
		t.Fatalf("Decode() error = %v, want ErrDecodeProperty", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Property != "Level" || de.Type != "sample" {
		t.Errorf("DecodeError = %+v", de)
	}
}

func TestEncodeErrorNamesProperty(t *testing.T) {
	type reading struct {
		Values [2]float64
	}
	h := newHarness(t, reflect.TypeFor[reading](), false)
	_, err := h.codec.Encode("reading", h.fields, h.mapping, reflect.ValueOf(reading{Values: [2]float64{math.NaN(), 1}}))
	if !errors.Is(err, ErrEncodeProperty) {
		t.Fatalf("Encode() error = %v, want ErrEncodeProperty", err)
	}
	var ee *EncodeError
	if !errors.As(err, &ee) || ee.Property != "Values" {
		t.Errorf("EncodeError = %+v", ee)
	}
}

func TestZero(t *testing.T) {
	h := newHarness(t, reflect.TypeFor[sample](), false)
	want := map[string]storage.Value{
		"Name":      storage.Text(""),
		"Count":     storage.Integer(0),
		"Big":       storage.Text("0"),
		"Enabled":   storage.Integer(0),
		"Home":      storage.Text(`{"Street":"","Number":0}`),
		"CreatedAt": storage.Text("0001-01-01 00:00:00.000"),
	}
	for _, f := range h.fields {
		w, ok := want[f.Name]
		if !ok {
			continue
		}
		got, ok := h.codec.Zero(f)
		if !ok || got != w {
			t.Errorf("Zero(%s) = %#v, %v; want %#v", f.Name, got, ok, w)
		}
	}
	for _, f := range h.fields {
		if f.Name == "Note" {
			if _, ok := h.codec.Zero(f); ok {
				t.Error("Zero(optional) should report no value")
			}
		}
	}
}
