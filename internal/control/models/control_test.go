package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

func TestNewControl(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("constructs a valid control", func(t *testing.T) {
		control, err := NewControl(id.NewControlID(), "  A.8.16  ", "Monitoring activities", "Networks are monitored", now)
		require.NoError(t, err)
		assert.Equal(t, "A.8.16", control.Reference)
		assert.Equal(t, "Monitoring activities", control.Name)
		assert.Equal(t, now, control.CreatedAt)
	})

	tests := []struct {
		name        string
		reference   string
		controlName string
	}{
		{"empty reference", "", "Monitoring activities"},
		{"blank reference", "   ", "Monitoring activities"},
		{"oversized reference", strings.Repeat("x", 65), "Monitoring activities"},
		{"empty name", "A.8.16", ""},
		{"blank name", "A.8.16", "  \t"},
		{"oversized name", "A.8.16", strings.Repeat("x", 201)},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := NewControl(id.NewControlID(), tt.reference, tt.controlName, "", now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
