package fiscal

import "strings"

var cuitMultiplicadores = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// LimpiarCUIT strips every non-digit character (dashes, spaces).
func LimpiarCUIT(cuit string) string {
	var b strings.Builder
	for _, r := range cuit {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatearCUIT renders an 11-digit CUIT as XX-XXXXXXXX-X.
// Inputs that are not 11 digits are returned unchanged.
func FormatearCUIT(cuit string) string {
	clean := LimpiarCUIT(cuit)
	if len(clean) != 11 {
		return cuit
	}
	return clean[:2] + "-" + clean[2:10] + "-" + clean[10:]
}

// ValidarCUIT checks the mod-11 verifier digit of an Argentine CUIT.
func ValidarCUIT(cuit string) bool {
	clean := LimpiarCUIT(cuit)
	if len(clean) != 11 {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(clean[i]-'0') * cuitMultiplicadores[i]
	}

	mod := sum % 11
	var verificador int
	switch mod {
	case 0:
		verificador = 0
	case 1:
		verificador = 9
	default:
		verificador = 11 - mod
	}

	return verificador == int(clean[10]-'0')
}
