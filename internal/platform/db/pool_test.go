package db

import (
	"context"
	"testing"
)

func TestValidSchema(t *testing.T) {
	valid := []string{"public", "clinic_north", "_billing2"}
	for _, s := range valid {
		if !ValidSchema(s) {
			t.Errorf("ValidSchema(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "Public", "1clinic", "billing; DROP TABLE payment", "a-b"}
	for _, s := range invalid {
		if ValidSchema(s) {
			t.Errorf("ValidSchema(%q) = true, want false", s)
		}
	}
}

func TestNewPool_RejectsBadSchema(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://localhost:5432/odonto", PoolOptions{Schema: "x;y"})
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestNewPool_RejectsBadURL(t *testing.T) {
	_, err := NewPool(context.Background(), "://bad", PoolOptions{})
	if err == nil {
		t.Fatal("expected error for invalid url")
	}
}
