package afip

import (
	"fmt"
	"unicode"
)

// pesos del dígito verificador del CUIT/CUIL, aplicados a los 10 primeros dígitos.
var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// Tipos de documento detectados por DetectDocumentType.
const (
	DocumentCUIT    = "CUIT"
	DocumentDNI     = "DNI"
	DocumentUnknown = "DESCONOCIDO"
)

// ValidateTaxID valida un CUIT/CUIL (con o sin guiones) y devuelve solo sus dígitos.
// Exige 11 dígitos y dígito verificador módulo 11 correcto.
func ValidateTaxID(raw string) (string, error) {
	digits := ExtractDigits(raw)
	if len(digits) != 11 {
		return "", NewInvalidInput("cuit", fmt.Sprintf("el CUIT debe tener 11 dígitos, se encontraron %d", len(digits)))
	}
	expected := ComputeCheckDigit(digits[:10])
	if digits[10] != expected {
		return "", NewInvalidInput("cuit", fmt.Sprintf("dígito verificador inválido: esperado %c, recibido %c", expected, digits[10]))
	}
	return digits, nil
}

// ComputeCheckDigit calcula el dígito verificador para los 10 primeros dígitos del CUIT.
// Resto 0 -> 0, resto 1 -> 9, en otro caso 11 - resto.
func ComputeCheckDigit(first10 string) byte {
	var sum int
	for i := 0; i < 10 && i < len(first10); i++ {
		sum += int(first10[i]-'0') * cuitWeights[i]
	}
	switch remainder := sum % 11; remainder {
	case 0:
		return '0'
	case 1:
		return '9'
	default:
		return byte('0' + (11 - remainder))
	}
}

// ValidateNationalID valida un DNI: 7 u 8 dígitos tras limpiar separadores.
func ValidateNationalID(raw string) (string, error) {
	digits := ExtractDigits(raw)
	if len(digits) < 7 || len(digits) > 8 {
		return "", NewInvalidInput("dni", "el DNI debe tener entre 7 y 8 dígitos")
	}
	return digits, nil
}

// FormatTaxID formatea un CUIT como XX-XXXXXXXX-X. Si no tiene 11 dígitos lo devuelve sin cambios.
func FormatTaxID(raw string) string {
	digits := ExtractDigits(raw)
	if len(digits) != 11 {
		return raw
	}
	return digits[:2] + "-" + digits[2:10] + "-" + digits[10:]
}

// DetectDocumentType clasifica un documento según su cantidad de dígitos.
func DetectDocumentType(raw string) string {
	switch n := len(ExtractDigits(raw)); {
	case n == 11:
		return DocumentCUIT
	case n >= 7 && n <= 8:
		return DocumentDNI
	default:
		return DocumentUnknown
	}
}

// ExtractDigits descarta todo lo que no sea dígito ASCII.
func ExtractDigits(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return string(out)
}
