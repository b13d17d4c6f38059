package afipws

import "encoding/xml"

// NamespaceWSFE namespace de WSFEv1. SOAPAction = NamespaceWSFE + operación.
const NamespaceWSFE = "http://ar.gov.afip.dif.FEV1/"

// Operaciones WSFE usadas.
const (
	OpLastAuthorized = "FECompUltimoAutorizado"
	OpRequestCAE     = "FECAESolicitar"
	OpDummy          = "FEDummy"
)

// =============================================================================
// Requests
// =============================================================================

type feAuth struct {
	Token string `xml:"Token"`
	Sign  string `xml:"Sign"`
	Cuit  int64  `xml:"Cuit"`
}

type lastAuthorizedRequest struct {
	XMLName  xml.Name `xml:"http://ar.gov.afip.dif.FEV1/ FECompUltimoAutorizado"`
	Auth     feAuth   `xml:"Auth"`
	PtoVta   int64    `xml:"PtoVta"`
	CbteTipo int      `xml:"CbteTipo"`
}

type caeRequest struct {
	XMLName  xml.Name     `xml:"http://ar.gov.afip.dif.FEV1/ FECAESolicitar"`
	Auth     feAuth       `xml:"Auth"`
	FeCAEReq feCAERequest `xml:"FeCAEReq"`
}

type feCAERequest struct {
	FeCabReq feCabRequest `xml:"FeCabReq"`
	FeDetReq feDetRequest `xml:"FeDetReq"`
}

type feCabRequest struct {
	CantReg  int   `xml:"CantReg"`
	PtoVta   int64 `xml:"PtoVta"`
	CbteTipo int   `xml:"CbteTipo"`
}

type feDetRequest struct {
	Detail []caeDetailRequest `xml:"FECAEDetRequest"`
}

// caeDetailRequest respeta el orden de la secuencia del WSDL.
type caeDetailRequest struct {
	Concepto     int       `xml:"Concepto"`
	DocTipo      int       `xml:"DocTipo"`
	DocNro       int64     `xml:"DocNro"`
	CbteDesde    int64     `xml:"CbteDesde"`
	CbteHasta    int64     `xml:"CbteHasta"`
	CbteFch      string    `xml:"CbteFch"`
	ImpTotal     string    `xml:"ImpTotal"`
	ImpTotConc   string    `xml:"ImpTotConc"`
	ImpNeto      string    `xml:"ImpNeto"`
	ImpOpEx      string    `xml:"ImpOpEx"`
	ImpTrib      string    `xml:"ImpTrib"`
	ImpIVA       string    `xml:"ImpIVA"`
	FchServDesde string    `xml:"FchServDesde,omitempty"`
	FchServHasta string    `xml:"FchServHasta,omitempty"`
	FchVtoPago   string    `xml:"FchVtoPago,omitempty"`
	MonId        string    `xml:"MonId"`
	MonCotiz     string    `xml:"MonCotiz"`
	Iva          *ivaBlock `xml:"Iva,omitempty"`
}

type ivaBlock struct {
	AlicIva []alicIva `xml:"AlicIva"`
}

type alicIva struct {
	Id      int    `xml:"Id"`
	BaseImp string `xml:"BaseImp"`
	Importe string `xml:"Importe"`
}

type dummyRequest struct {
	XMLName xml.Name `xml:"http://ar.gov.afip.dif.FEV1/ FEDummy"`
}

// =============================================================================
// Responses
// =============================================================================

type feErr struct {
	Code string `xml:"Code"`
	Msg  string `xml:"Msg"`
}

type feErrors struct {
	Err []feErr `xml:"Err"`
}

type lastAuthorizedResponse struct {
	XMLName xml.Name `xml:"FECompUltimoAutorizadoResponse"`
	Result  *struct {
		PtoVta   int64     `xml:"PtoVta"`
		CbteTipo int       `xml:"CbteTipo"`
		CbteNro  *int64    `xml:"CbteNro"`
		Errors   *feErrors `xml:"Errors"`
	} `xml:"FECompUltimoAutorizadoResult"`
}

type caeResponse struct {
	XMLName xml.Name `xml:"FECAESolicitarResponse"`
	Result  *struct {
		FeCabResp struct {
			Cuit       int64  `xml:"Cuit"`
			PtoVta     int64  `xml:"PtoVta"`
			CbteTipo   int    `xml:"CbteTipo"`
			FchProceso string `xml:"FchProceso"`
			Resultado  string `xml:"Resultado"`
		} `xml:"FeCabResp"`
		FeDetResp struct {
			Detail []caeDetailResponse `xml:"FECAEDetResponse"`
		} `xml:"FeDetResp"`
		Errors *feErrors `xml:"Errors"`
	} `xml:"FECAESolicitarResult"`
}

type caeDetailResponse struct {
	Concepto      int    `xml:"Concepto"`
	DocTipo       int    `xml:"DocTipo"`
	DocNro        int64  `xml:"DocNro"`
	CbteDesde     int64  `xml:"CbteDesde"`
	CbteHasta     int64  `xml:"CbteHasta"`
	CbteFch       string `xml:"CbteFch"`
	Resultado     string `xml:"Resultado"`
	CAE           string `xml:"CAE"`
	CAEFchVto     string `xml:"CAEFchVto"`
	Observaciones *struct {
		Obs []feErr `xml:"Obs"`
	} `xml:"Observaciones"`
}

type dummyResponse struct {
	XMLName xml.Name `xml:"FEDummyResponse"`
	Result  *struct {
		AppServer  string `xml:"AppServer"`
		DbServer   string `xml:"DbServer"`
		AuthServer string `xml:"AuthServer"`
	} `xml:"FEDummyResult"`
}

// loginTicketResponse respuesta de WSAA (contenido de loginCmsReturn).
type loginTicketResponse struct {
	XMLName xml.Name `xml:"loginTicketResponse"`
	Header  struct {
		UniqueID       string `xml:"uniqueId"`
		GenerationTime string `xml:"generationTime"`
		ExpirationTime string `xml:"expirationTime"`
	} `xml:"header"`
	Credentials struct {
		Token string `xml:"token"`
		Sign  string `xml:"sign"`
	} `xml:"credentials"`
}
