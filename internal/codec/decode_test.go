package codec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/catalog/internal/domain"
)

func TestDecode_Object(t *testing.T) {
	doc, err := Decode([]byte(`{"name":"BILLY","price":{"value":49.99}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := Lookup(doc, "price", "value")
	if !ok {
		t.Fatal("expected price.value")
	}
	if n, ok := v.(json.Number); !ok || n.String() != "49.99" {
		t.Errorf("price.value = %#v", v)
	}
}

func TestDecode_Scalars(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"x"`, `false`, `0`} {
		if _, err := Decode([]byte(in)); err != nil {
			t.Errorf("Decode(%s): %v", in, err)
		}
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		msg  string
	}{
		{"empty", nil, "empty body"},
		{"whitespace", []byte("  \n"), "empty body"},
		{"null", []byte("null"), "null"},
		{"syntax", []byte(`{"a":}`), "offset"},
		{"truncated", []byte(`{"a":1`), ""},
		{"trailing", []byte(`{"a":1} x`), "after document"},
		{"utf8", []byte{'"', 0xff, 0xfe, '"'}, "UTF-8"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
			if tc.msg != "" && !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("error %q does not mention %q", err, tc.msg)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{"a": map[string]any{"b": []any{1}}}

	if _, ok := Lookup(doc, "a", "b"); !ok {
		t.Error("expected a.b")
	}
	if _, ok := Lookup(doc, "a", "c"); ok {
		t.Error("unexpected a.c")
	}
	if _, ok := Lookup(doc, "a", "b", "c"); ok {
		t.Error("cannot descend into an array")
	}
	if v, ok := Lookup(doc); !ok || v == nil {
		t.Error("empty path returns the document")
	}
}

func TestBoolAndString(t *testing.T) {
	obj := map[string]any{"exists": true, "flag": "true", "s": "x", "e": ""}

	if b, ok := Bool(obj, "exists"); !ok || !b {
		t.Error("expected exists=true")
	}
	if _, ok := Bool(obj, "flag"); ok {
		t.Error("string is not a boolean")
	}
	if _, ok := Bool([]any{}, "exists"); ok {
		t.Error("array has no fields")
	}
	if s, ok := String(obj, "s"); !ok || s != "x" {
		t.Error("expected s=x")
	}
	if _, ok := String(obj, "e"); ok {
		t.Error("empty string is treated as missing")
	}
}
