package signer_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/afip/signer"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// selfSigned genera un certificado RSA autofirmado con el CUIT en SERIALNUMBER, como los de AFIP.
func selfSigned(t *testing.T, cuit string) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "facturacion-test", SerialNumber: "CUIT " + cuit},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM
}

func TestBuildRequest_Ventana(t *testing.T) {
	s := signer.NewCMSSigner()
	now := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

	payload, err := s.BuildRequest("wsfe", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), `<?xml version="1.0" encoding="UTF-8"?>`))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(payload))
	root := doc.SelectElement("loginTicketRequest")
	require.NotNil(t, root)
	assert.Equal(t, "1.0", root.SelectAttrValue("version", ""))
	assert.Equal(t, "wsfe", root.FindElement("service").Text())

	gen, err := time.Parse(time.RFC3339, root.FindElement("header/generationTime").Text())
	require.NoError(t, err)
	exp, err := time.Parse(time.RFC3339, root.FindElement("header/expirationTime").Text())
	require.NoError(t, err)
	assert.True(t, gen.Equal(now.Add(-10*time.Minute)))
	assert.True(t, exp.Equal(now.Add(10*time.Minute)))
	assert.Equal(t, "2026-10-19T09:50:00-03:00", root.FindElement("header/generationTime").Text())
}

func TestBuildRequest_UniqueIdCreciente(t *testing.T) {
	s := signer.NewCMSSigner()
	now := time.Now()
	first, err := s.BuildRequest("wsfe", now)
	require.NoError(t, err)
	second, err := s.BuildRequest("wsfe", now)
	require.NoError(t, err)

	id := func(b []byte) string {
		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(b))
		return doc.FindElement("//uniqueId").Text()
	}
	assert.NotEqual(t, id(first), id(second))
}

func TestSign_CMSVerificable(t *testing.T) {
	certPEM, keyPEM := selfSigned(t, "20123456786")
	s := signer.NewCMSSigner()
	payload, err := s.BuildRequest("wsfe", time.Now())
	require.NoError(t, err)

	b64, err := s.Sign(payload, entity.FiscalCredential{IssuerTaxID: "20123456786", Certificate: certPEM, PrivateKey: keyPEM})
	require.NoError(t, err)
	assert.NotContains(t, b64, "-----BEGIN")
	assert.NotContains(t, b64, "\n")

	der, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	assert.Equal(t, payload, p7.Content, "el TRA viaja embebido")
	require.Len(t, p7.Signers, 1)
	assert.Empty(t, p7.Signers[0].AuthenticatedAttributes, "sin atributos firmados")
	assert.NoError(t, p7.Verify())
}

func TestSign_EtapasDistinguibles(t *testing.T) {
	certPEM, keyPEM := selfSigned(t, "20123456786")
	_, otherKey := selfSigned(t, "20123456786")
	s := signer.NewCMSSigner()

	cases := []struct {
		name  string
		cred  entity.FiscalCredential
		stage afip.SigningStage
	}{
		{"certificado roto", entity.FiscalCredential{Certificate: []byte("basura"), PrivateKey: keyPEM}, afip.StageCertificate},
		{"clave rota", entity.FiscalCredential{Certificate: certPEM, PrivateKey: []byte("basura")}, afip.StagePrivateKey},
		{"clave de otro certificado", entity.FiscalCredential{Certificate: certPEM, PrivateKey: otherKey}, afip.StagePrivateKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Sign([]byte("<loginTicketRequest/>"), tc.cred)
			require.Error(t, err)
			var e *afip.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, afip.KindSigningFailed, e.Kind)
			assert.Equal(t, tc.stage, e.Stage)
			assert.Equal(t, afip.CategoryCredentials, afip.Category(err))
		})
	}
}

func TestLoadCredential_PEM(t *testing.T) {
	certPEM, keyPEM := selfSigned(t, "20123456786")
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.crt")
	keyPath := filepath.Join(dir, "private.key")
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	cred, err := signer.LoadCredential("20123456786", certPath, keyPath, "")
	require.NoError(t, err)
	assert.Equal(t, certPEM, cred.Certificate)
	assert.NoError(t, signer.CheckTaxID(cred))

	// Certificado y clave en el mismo archivo.
	both := filepath.Join(dir, "both.pem")
	require.NoError(t, os.WriteFile(both, append(append([]byte{}, certPEM...), keyPEM...), 0o600))
	cred, err = signer.LoadCredential("20123456786", both, "", "")
	require.NoError(t, err)
	assert.False(t, cred.Empty())
}

func TestLoadCredential_ArchivoInexistente(t *testing.T) {
	_, err := signer.LoadCredential("20123456786", "/no/existe.crt", "/no/existe.key", "")
	var e *afip.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, afip.StageCertificate, e.Stage)
}

func TestCheckTaxID_CUITDistinto(t *testing.T) {
	certPEM, keyPEM := selfSigned(t, "30500010912")
	err := signer.CheckTaxID(entity.FiscalCredential{IssuerTaxID: "20123456786", Certificate: certPEM, PrivateKey: keyPEM})
	assert.ErrorIs(t, err, afip.ErrSigningFailed)
}
