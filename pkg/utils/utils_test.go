package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$6,167.43", FormatCurrency(6167.43))
	assert.Equal(t, "$123.35", FormatCurrency(123.3486))
	assert.Equal(t, "-$1,000,000.00", FormatCurrency(-1e6))
	assert.Equal(t, "$0.00", FormatCurrency(0))
	assert.Equal(t, "+$12.50", FormatPnL(12.5))
	assert.Equal(t, "-$3.00", FormatPnL(-3))
	assert.Equal(t, "2.00%", FormatPercent(0.02))
	assert.Equal(t, "+2.00R", FormatR(2))
	assert.Equal(t, "0.0616743", FormatUnits(0.0616743))
	assert.Equal(t, "43000.00", FormatPrice(43000))
	assert.Equal(t, "0.00001234", FormatPrice(0.00001234))
}

// Property: Currency formatting groups digits by three and preserves the
// cent-rounded value.
func TestProperty_CurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)

	properties.Property("FormatCurrency produces grouped dollars", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount)
			num := strings.TrimPrefix(strings.TrimPrefix(formatted, "-"), "$")
			parts := strings.Split(num, ".")
			if len(parts) != 2 || len(parts[1]) != 2 || !grouped.MatchString(parts[0]) {
				t.Logf("bad format for %f: %s", amount, formatted)
				return false
			}

			parsed, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-math.Abs(amount)) <= 0.005+1e-9*math.Abs(amount)
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}

func TestNewIDIsSortable(t *testing.T) {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	a := NewID(at)
	b := NewID(at)
	assert.Len(t, a, 26)
	assert.Less(t, a, b)

	got, err := IDTime(a)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	_, err = IDTime("not-an-id")
	assert.Error(t, err)
}
