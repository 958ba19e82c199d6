package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodoActual(t *testing.T) {
	assert.Equal(t, "2024-03", PeriodoActual(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12", PeriodoActual(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRangoPeriodo(t *testing.T) {
	desde, hasta, err := RangoPeriodo("2024-02")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), desde)
	// 2024 is a leap year: the range ends on Feb 29
	assert.Equal(t, 29, hasta.Day())
	assert.Equal(t, time.February, hasta.Month())
	assert.True(t, hasta.Before(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRangoPeriodoDiciembre(t *testing.T) {
	desde, hasta, err := RangoPeriodo("2023-12")
	require.NoError(t, err)
	assert.Equal(t, time.December, desde.Month())
	assert.Equal(t, 2023, hasta.Year())
	assert.Equal(t, 31, hasta.Day())
}

func TestRangoPeriodoInvalido(t *testing.T) {
	_, _, err := RangoPeriodo("03-2024")
	assert.Error(t, err)
	_, _, err = RangoPeriodo("2024-13")
	assert.Error(t, err)
	_, _, err = RangoPeriodo("")
	assert.Error(t, err)
}
