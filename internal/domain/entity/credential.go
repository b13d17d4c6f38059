package entity

// FiscalCredential certificado y clave privada del emisor ante AFIP.
// Inmutable durante una sesión de facturación; se carga desde archivos del operador.
type FiscalCredential struct {
	IssuerTaxID string // CUIT del emisor, solo dígitos (11)
	Certificate []byte // certificado X.509 en PEM (emitido por AFIP)
	PrivateKey  []byte // clave privada RSA en PEM, sin passphrase
}

// Empty indica si la credencial no tiene material criptográfico cargado.
func (c FiscalCredential) Empty() bool {
	return len(c.Certificate) == 0 || len(c.PrivateKey) == 0
}
