package utilities

import (
	"strconv"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken(32)
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	b, _ := NewOpaqueToken(32)
	if a == b {
		t.Fatal("two tokens collided")
	}
}

func TestNewNumericCodeRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := NewNumericCode(100000, 999999)
		if err != nil {
			t.Fatalf("NewNumericCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < 100000 || n > 999999 {
			t.Fatalf("code %q out of range", code)
		}
	}
	if _, err := NewNumericCode(5, 1); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestIDNode(t *testing.T) {
	n, err := NewIDNode(1)
	if err != nil {
		t.Fatalf("NewIDNode: %v", err)
	}
	if n.Next() == n.Next() {
		t.Fatal("snowflake ids must differ")
	}
	if _, err := NewIDNode(-1); err == nil {
		t.Fatal("expected error for negative node")
	}
	var nilNode *IDNode
	if nilNode.Next() == "" {
		t.Fatal("nil node should fall back to ksuid")
	}
}
