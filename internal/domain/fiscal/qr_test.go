package fiscal_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/fiscal"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

func TestQRURL_PayloadAFIP(t *testing.T) {
	inv := &entity.Invoice{
		InvoiceType:     afip.InvoiceTypeB,
		PointOfSale:     3,
		InvoiceNumber:   42,
		CAE:             "71234567890123",
		BuyerNationalID: "30123456",
		TotalAmount:     decimal.RequireFromString("121"),
		// 01:00 UTC del 11/03 sigue siendo 10/03 en Argentina
		IssuedAt: time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC),
	}

	url, err := fiscal.QRURL("20111111112", inv)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, fiscal.QRBaseURL))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, fiscal.QRBaseURL))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"importe":121.00`)

	var p map[string]any
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, float64(1), p["ver"])
	assert.Equal(t, "2026-03-10", p["fecha"])
	assert.Equal(t, float64(20111111112), p["cuit"])
	assert.Equal(t, float64(3), p["ptoVta"])
	assert.Equal(t, float64(6), p["tipoCmp"])
	assert.Equal(t, float64(42), p["nroCmp"])
	assert.Equal(t, "PES", p["moneda"])
	assert.Equal(t, float64(96), p["tipoDocRec"])
	assert.Equal(t, float64(30123456), p["nroDocRec"])
	assert.Equal(t, "E", p["tipoCodAut"])
	assert.Equal(t, float64(71234567890123), p["codAut"])
}

func TestQRURL_CAEInvalido(t *testing.T) {
	_, err := fiscal.QRURL("20111111112", &entity.Invoice{CAE: "abc"})
	assert.Error(t, err)
}
