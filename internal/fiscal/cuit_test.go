package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimpiarCUIT(t *testing.T) {
	assert.Equal(t, "20123456786", LimpiarCUIT("20-12345678-6"))
	assert.Equal(t, "20123456786", LimpiarCUIT("20 12345678 6"))
	assert.Equal(t, "20123456786", LimpiarCUIT("20123456786"))
	assert.Equal(t, "", LimpiarCUIT("sin digitos"))
}

func TestFormatearCUIT(t *testing.T) {
	assert.Equal(t, "20-12345678-6", FormatearCUIT("20123456786"))
	assert.Equal(t, "20-12345678-6", FormatearCUIT("20-12345678-6"))
	// Not 11 digits: returned as-is
	assert.Equal(t, "123", FormatearCUIT("123"))
}

func TestValidarCUIT(t *testing.T) {
	casos := []struct {
		cuit   string
		valido bool
	}{
		{"20123456786", true}, // persona física
		{"27234567123", true},
		{"30500010912", true}, // persona jurídica
		{"20123456789", false},
		{"20123456780", false},
		{"2012345678", false},   // 10 dígitos
		{"201234567861", false}, // 12 dígitos
		{"", false},
	}
	for _, c := range casos {
		assert.Equal(t, c.valido, ValidarCUIT(c.cuit), "cuit %q", c.cuit)
	}
}

func TestValidarCUITConSeparadores(t *testing.T) {
	assert.True(t, ValidarCUIT("20-12345678-6"))
}
