// Carga de certificado y clave desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// LoadCredential lee la credencial del emisor. certPath puede ser un .p12/.pfx
// (usa password) o un PEM; si keyPath está vacío se busca la clave en certPath.
func LoadCredential(issuerTaxID, certPath, keyPath, password string) (entity.FiscalCredential, error) {
	cred := entity.FiscalCredential{IssuerTaxID: issuerTaxID}
	if certPath == "" {
		return cred, afip.NewSigningFailed(afip.StageCertificate, "ruta del certificado vacía", nil)
	}

	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		return loadFromP12(cred, certPath, password)
	}

	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return cred, afip.NewSigningFailed(afip.StageCertificate, "leer certificado", err)
	}
	keyPEM := certPEM
	if keyPath != "" {
		keyPEM, err = os.ReadFile(keyPath)
		if err != nil {
			return cred, afip.NewSigningFailed(afip.StagePrivateKey, "leer clave privada", err)
		}
	}
	if _, err := parseCertificate(certPEM); err != nil {
		return cred, afip.NewSigningFailed(afip.StageCertificate, "certificado inválido", err)
	}
	if _, err := parsePrivateKey(keyPEM); err != nil {
		return cred, afip.NewSigningFailed(afip.StagePrivateKey, "clave privada inválida", err)
	}
	cred.Certificate = certPEM
	cred.PrivateKey = keyPEM
	return cred, nil
}

// loadFromP12 decodifica el .p12 y lo reexpresa como par PEM.
func loadFromP12(cred entity.FiscalCredential, path, password string) (entity.FiscalCredential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cred, afip.NewSigningFailed(afip.StageCertificate, "leer p12", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return cred, afip.NewSigningFailed(afip.StageCertificate, "decodificar p12", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return cred, afip.NewSigningFailed(afip.StagePrivateKey, "exportar clave del p12", err)
	}
	cred.Certificate = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	cred.PrivateKey = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return cred, nil
}

// CheckTaxID verifica que el CUIT del certificado (si figura) coincida con el configurado.
func CheckTaxID(cred entity.FiscalCredential) error {
	info, err := Inspect(cred)
	if err != nil {
		return err
	}
	if info.TaxID != "" && info.TaxID != cred.IssuerTaxID {
		return afip.NewSigningFailed(afip.StageCertificate,
			fmt.Sprintf("el certificado pertenece al CUIT %s y no a %s", info.TaxID, cred.IssuerTaxID), nil)
	}
	return nil
}
