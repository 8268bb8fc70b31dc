package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"trading-gate/internal/errors"
)

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"BTC-USD", "eth/usdt", "SOLUSDC", " BTC-USD "} {
		assert.NoError(t, ValidateSymbol(ok), ok)
	}
	for _, bad := range []string{"", "B", "BTC_USD", "BTC-USD-PERP", "BTC USD", "BTC-USD;DROP"} {
		assert.ErrorIs(t, ValidateSymbol(bad), errors.ErrInvalidInput, bad)
	}
}

func TestValidateRef(t *testing.T) {
	assert.NoError(t, ValidateRef(""))
	assert.NoError(t, ValidateRef("tv-alert:2024.03.04_1"))
	assert.ErrorIs(t, ValidateRef("has space"), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateRef(strings.Repeat("a", MaxRefLength+1)), errors.ErrInvalidInput)
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText("notes", "line one\n\tline two", MaxNoteLength))
	assert.ErrorIs(t, ValidateText("notes", "bell\a", MaxNoteLength), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateText("notes", strings.Repeat("x", MaxNoteLength+1), MaxNoteLength), errors.ErrInvalidInput)
}

func TestValidateTags(t *testing.T) {
	assert.NoError(t, ValidateTags(nil))
	assert.NoError(t, ValidateTags([]string{"moved stop", "late_entry"}))
	assert.ErrorIs(t, ValidateTags([]string{"ok", " "}), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateTags([]string{strings.Repeat("t", MaxTagLength+1)}), errors.ErrInvalidInput)
}
