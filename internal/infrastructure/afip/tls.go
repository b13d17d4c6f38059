package afip

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// legacyTLSConfig TLS con nivel de seguridad reducido: los servidores de AFIP
// negocian claves DH cortas y suites CBC que la configuración por defecto rechaza.
func legacyTLSConfig(insecureSkipVerify bool) *tls.Config {
	suites := make([]uint16, 0, 32)
	for _, s := range tls.CipherSuites() {
		suites = append(suites, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		suites = append(suites, s.ID)
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS10,
		MaxVersion:         tls.VersionTLS12,
		CipherSuites:       suites,
		InsecureSkipVerify: insecureSkipVerify,
	}
}

// newHTTPClient cliente con timeout de conexión y timeout total por llamada.
// Con tlsCfg nil usa la configuración TLS por defecto de Go.
func newHTTPClient(tlsCfg *tls.Config, connectTimeout, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}
