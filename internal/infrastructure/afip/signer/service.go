// Firma CMS (PKCS#7) del TRA para loginCms de WSAA.

package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"go.mozilla.org/pkcs7"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// CMSSigner arma y firma el TRA. Firma binaria SHA-256 sin atributos firmados,
// con el TRA embebido en el CMS (WSAA lo lee del propio mensaje).
type CMSSigner struct {
	ids uniqueIDs
}

// NewCMSSigner crea el firmador.
func NewCMSSigner() *CMSSigner {
	return &CMSSigner{}
}

// Sign firma el payload con la credencial y devuelve el CMS DER en base64.
// Los errores indican la etapa: certificado, clave privada o motor de firma.
func (s *CMSSigner) Sign(payload []byte, cred entity.FiscalCredential) (string, error) {
	if len(payload) == 0 {
		return "", afip.NewSigningFailed(afip.StageSigningEngine, "TRA vacío", nil)
	}
	cert, err := parseCertificate(cred.Certificate)
	if err != nil {
		return "", afip.NewSigningFailed(afip.StageCertificate, "certificado inválido", err)
	}
	key, err := parsePrivateKey(cred.PrivateKey)
	if err != nil {
		return "", afip.NewSigningFailed(afip.StagePrivateKey, "clave privada inválida", err)
	}
	if !publicKeyMatches(cert, key) {
		return "", afip.NewSigningFailed(afip.StagePrivateKey, "la clave privada no corresponde al certificado", nil)
	}

	sd, err := pkcs7.NewSignedData(payload)
	if err != nil {
		return "", afip.NewSigningFailed(afip.StageSigningEngine, "inicializar CMS", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.SignWithoutAttr(cert, key, pkcs7.SignerInfoConfig{}); err != nil {
		return "", afip.NewSigningFailed(afip.StageSigningEngine, "firmar CMS", err)
	}
	der, err := sd.Finish()
	if err != nil {
		return "", afip.NewSigningFailed(afip.StageSigningEngine, "serializar CMS", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block := firstBlock(data, "CERTIFICATE")
	if block == nil {
		return nil, errors.New("no se encontró un bloque CERTIFICATE en el PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

// parsePrivateKey acepta PKCS#1 (RSA PRIVATE KEY), PKCS#8 (PRIVATE KEY) y EC.
func parsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	var block *pem.Block
	for {
		block, data = pem.Decode(data)
		if block == nil || block.Type != "CERTIFICATE" {
			break
		}
	}
	if block == nil {
		return nil, errors.New("no se encontró un bloque de clave privada en el PEM")
	}
	if _, encrypted := block.Headers["Proc-Type"]; encrypted {
		return nil, errors.New("la clave privada está cifrada; exporte la clave sin passphrase")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	return nil, fmt.Errorf("formato de clave no soportado (%s)", block.Type)
}

func publicKeyMatches(cert *x509.Certificate, key crypto.PrivateKey) bool {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		return ok && pub.Equal(&k.PublicKey)
	case *ecdsa.PrivateKey:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Equal(&k.PublicKey)
	}
	return false
}

func firstBlock(data []byte, typ string) *pem.Block {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil
		}
		if block.Type == typ {
			return block
		}
	}
}

// CertificateInfo datos del certificado para diagnóstico del operador.
type CertificateInfo struct {
	Subject  string
	Issuer   string
	TaxID    string // CUIT del SERIALNUMBER del subject, si figura
	NotAfter time.Time
}

// Inspect describe el certificado de la credencial.
func Inspect(cred entity.FiscalCredential) (*CertificateInfo, error) {
	cert, err := parseCertificate(cred.Certificate)
	if err != nil {
		return nil, afip.NewSigningFailed(afip.StageCertificate, "certificado inválido", err)
	}
	if _, err := tls.X509KeyPair(cred.Certificate, cred.PrivateKey); err != nil {
		return nil, afip.NewSigningFailed(afip.StagePrivateKey, "par certificado/clave inválido", err)
	}
	return &CertificateInfo{
		Subject:  cert.Subject.String(),
		Issuer:   cert.Issuer.String(),
		TaxID:    afip.ExtractDigits(cert.Subject.SerialNumber),
		NotAfter: cert.NotAfter,
	}, nil
}
