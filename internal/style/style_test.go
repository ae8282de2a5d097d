package style

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/elclones/internal/errors"
)

type fakeElement struct {
	computed []Property
	inline   map[string]string
	reject   map[string]bool
	err      error
}

func (f *fakeElement) ComputedStyle(context.Context) ([]Property, error) {
	return f.computed, f.err
}

func (f *fakeElement) SetStyleProperty(_ context.Context, name, value string) error {
	if f.reject[name] {
		return fmt.Errorf("%s is read-only", name)
	}
	if f.inline == nil {
		f.inline = make(map[string]string)
	}
	f.inline[name] = value
	return nil
}

func TestEncode_KeepsEnumerationOrder(t *testing.T) {
	src := &fakeElement{computed: []Property{
		{"z-index", "auto"},
		{"color", "rgb(255, 255, 255)"},
		{"background-color", "rgb(0, 0, 255)"},
	}}

	got, err := Encode(context.Background(), src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"z-index":"auto","color":"rgb(255, 255, 255)","background-color":"rgb(0, 0, 255)"}`
	if got != want {
		t.Errorf("Encode = %s\nwant %s", got, want)
	}
}

func TestEncode_SourceError(t *testing.T) {
	_, err := Encode(context.Background(), &fakeElement{err: fmt.Errorf("detached")})
	if err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestRoundTrip_ReproducesWritableProperties(t *testing.T) {
	ctx := context.Background()
	src := &fakeElement{computed: []Property{
		{"color", "rgb(255, 255, 255)"},
		{"length", "3"},
		{"display", "inline-block"},
		{"parentRule", ""},
		{"font-size", "13.333px"},
	}}

	encoded, err := Encode(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Decode(encoded)
	if err != nil {
		t.Fatal(err)
	}

	dst := &fakeElement{}
	res := Apply(ctx, dst, snap, nil)

	want := map[string]string{
		"color":     "rgb(255, 255, 255)",
		"display":   "inline-block",
		"font-size": "13.333px",
	}
	if diff := cmp.Diff(want, dst.inline); diff != "" {
		t.Errorf("inline style mismatch (-want +got):\n%s", diff)
	}
	if res != (ApplyResult{Applied: 3, Skipped: 2}) {
		t.Errorf("ApplyResult = %+v", res)
	}
}

func TestApply_FailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dst := &fakeElement{reject: map[string]bool{"inset-block": true}}
	snap := Snapshot{{"color", "red"}, {"inset-block", "0"}, {"margin", "4px"}}

	res := Apply(context.Background(), dst, snap, zap.New(core))

	if res != (ApplyResult{Applied: 2, Failed: 1}) {
		t.Errorf("ApplyResult = %+v", res)
	}
	if dst.inline["margin"] != "4px" {
		t.Error("properties after the failure were not applied")
	}
	entries := logs.FilterField(zap.String("property", "inset-block")).All()
	if len(entries) != 1 {
		t.Errorf("logged %d warnings for the failed property, want 1", len(entries))
	}
}

func TestFromProperties_Duplicates(t *testing.T) {
	got := FromProperties([]Property{{"a", "1"}, {"b", "2"}, {"a", "3"}})
	want := Snapshot{{"a", "3"}, {"b", "2"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromProperties (-want +got):\n%s", diff)
	}
}

func TestDecode_Scalars(t *testing.T) {
	snap, err := Decode(`{"opacity":1,"x":true,"y":null,"color":"red"}`)
	if err != nil {
		t.Fatal(err)
	}
	want := Snapshot{{"opacity", "1"}, {"x", "true"}, {"y", ""}, {"color", "red"}}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("Decode (-want +got):\n%s", diff)
	}
	if v, ok := snap.Get("color"); !ok || v != "red" {
		t.Errorf("Get(color) = %q, %v", v, ok)
	}
	if _, ok := snap.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{``, `[]`, `{"a":{}}`, `{"a":"b"`, `"str"`} {
		if _, err := Decode(in); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Decode(%q) error = %v, want INVALID_REQUEST", in, err)
		}
	}
}

func TestSnapshot_EmbedsAsObject(t *testing.T) {
	data, err := json.Marshal(struct {
		S Snapshot `json:"s"`
	}{S: Snapshot{{"b", "1"}, {"a", "2"}}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"s":{"b":"1","a":"2"}}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestNonWritable(t *testing.T) {
	for name, want := range map[string]bool{"length": true, "parentRule": true, "color": false} {
		if NonWritable(name) != want {
			t.Errorf("NonWritable(%q) = %v", name, !want)
		}
	}
}
