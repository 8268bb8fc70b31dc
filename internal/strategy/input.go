package strategy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"trading-gate/internal/errors"
)

// Text limits for caller-supplied free-form fields.
const (
	MaxNoteLength = 2000
	MaxRefLength  = 64
	MaxTagLength  = 40
)

var (
	// Pair symbol: base and quote, optionally separated by - or /, e.g.
	// BTC-USD, ETH/USDT, SOLUSDC.
	symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,15}([-/][A-Z0-9]{2,15})?$`)

	// Client reference: alphanumeric with limited separators.
	refPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
)

// ValidateSymbol checks that symbol looks like a trading pair. Matching is
// case-insensitive.
func ValidateSymbol(symbol string) error {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return errors.NewInvalidInputError("symbol", symbol, "is required")
	}
	if !symbolPattern.MatchString(s) {
		return errors.NewInvalidInputError("symbol", symbol, "must be a pair such as BTC-USD")
	}
	return nil
}

// ValidateRef checks a client reference.
func ValidateRef(ref string) error {
	if ref == "" {
		return nil
	}
	if len(ref) > MaxRefLength {
		return errors.NewInvalidInputError("client_ref", ref, fmt.Sprintf("too long (max %d characters)", MaxRefLength))
	}
	if !refPattern.MatchString(ref) {
		return errors.NewInvalidInputError("client_ref", ref, "may only contain letters, digits and _ . : -")
	}
	return nil
}

// ValidateText checks a free-form field against maxLen and rejects control
// characters other than newlines and tabs.
func ValidateText(field, text string, maxLen int) error {
	if len(text) > maxLen {
		return errors.NewInvalidInputError(field, text[:20]+"...", fmt.Sprintf("too long (max %d characters)", maxLen))
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return errors.NewInvalidInputError(field, fmt.Sprintf("%q", text), "contains control characters")
		}
	}
	return nil
}

// ValidateTags checks caller-supplied mistake tags.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return errors.NewInvalidInputError("mistake_tags", tag, "must not be blank")
		}
		if err := ValidateText("mistake_tags", tag, MaxTagLength); err != nil {
			return err
		}
	}
	return nil
}
