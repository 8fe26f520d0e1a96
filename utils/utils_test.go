package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM \n"))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ada@example.com", "a***@example.com"},
		{"a@example.com", "***@example.com"},
		{"no-at-sign", "***no-at-sign"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.in), tt.in)
	}
}

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, FormatTimePtr(nil))

	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	got := FormatTimePtr(&ts)
	if assert.NotNil(t, got) {
		assert.Equal(t, "2026-03-01T11:30:00Z", *got)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}
