package duckdb

import (
	"math"
	"math/big"
	"testing"
)

func TestNormalizeValue(t *testing.T) {
	if got := normalizeValue([]byte("abc")); got != "abc" {
		t.Fatalf("bytes = %#v", got)
	}
	if got := normalizeValue(math.NaN()); got != "NaN" {
		t.Fatalf("nan = %#v", got)
	}
	if got := normalizeValue(math.Inf(-1)); got != "-Infinity" {
		t.Fatalf("-inf = %#v", got)
	}
	if got := normalizeValue(int64(7)); got != int64(7) {
		t.Fatalf("int64 = %#v", got)
	}

	uuidBytes := [16]byte{0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78}
	if got := normalizeValue(uuidBytes); got != "12345678-1234-5678-1234-567812345678" {
		t.Fatalf("uuid = %#v", got)
	}

	mapped, ok := normalizeValue(map[any]any{1: []byte("x")}).(map[string]any)
	if !ok || mapped["1"] != "x" {
		t.Fatalf("map = %#v", mapped)
	}

	list, ok := normalizeValue([]any{[]byte("a"), math.Inf(1)}).([]any)
	if !ok || list[0] != "a" || list[1] != "Infinity" {
		t.Fatalf("list = %#v", list)
	}
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		value int64
		scale uint8
		want  string
	}{
		{1234, 2, "12.34"},
		{-1234, 2, "-12.34"},
		{5, 3, "0.005"},
		{-5, 1, "-0.5"},
		{42, 0, "42"},
		{0, 2, "0.00"},
	}
	for _, tc := range tests {
		if got := formatDecimal(big.NewInt(tc.value), tc.scale); got != tc.want {
			t.Fatalf("formatDecimal(%d, %d) = %q, want %q", tc.value, tc.scale, got, tc.want)
		}
	}
	if got := formatDecimal(nil, 2); got != "0" {
		t.Fatalf("formatDecimal(nil) = %q", got)
	}
}
