package afip

import (
	"fmt"

	pkgafip "github.com/jhoicas/afip-facturacion/pkg/afip"
)

// ── URLs por ambiente ─────────────────────────────────────────────────────────

const (
	wsaaURLTesting    = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	wsaaURLProduction = "https://wsaa.afip.gov.ar/ws/services/LoginCms"

	wsfeURLTesting    = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	wsfeURLProduction = "https://servicios1.afip.gov.ar/wsfev1/service.asmx"

	soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"
	wsaaNS    = "http://wsaa.view.sua.dvadac.desein.afip.gov"
	wsfeNS    = "http://ar.gov.afip.dif.FEV1/"
)

// Endpoints URLs de WSAA y WSFE.
type Endpoints struct {
	WSAA string
	WSFE string
}

// EndpointsFor devuelve las URLs del ambiente (homologación o producción).
func EndpointsFor(env pkgafip.Environment) (Endpoints, error) {
	switch env {
	case pkgafip.EnvTesting:
		return Endpoints{WSAA: wsaaURLTesting, WSFE: wsfeURLTesting}, nil
	case pkgafip.EnvProduction:
		return Endpoints{WSAA: wsaaURLProduction, WSFE: wsfeURLProduction}, nil
	}
	return Endpoints{}, fmt.Errorf("afip: ambiente desconocido %q (usar 'testing' o 'production')", env)
}
