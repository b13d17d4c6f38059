package entity

import "github.com/shopspring/decimal"

// Order pedido del e-commerce que dispara la facturación (lo provee el colaborador de pedidos).
type Order struct {
	Reference string
	Total     decimal.Decimal // precio final con IVA incluido
	// Datos del comprador cargados en el checkout.
	BuyerTaxID      string
	BuyerNationalID string
	BuyerTaxStatus  int // 0 si no se informó
	BuyerFirstName  string
	BuyerLastName   string
	BuyerEmail      string
	Lines           []OrderLine
}

// OrderLine línea del pedido. Virtual/descargable cuenta como servicio.
type OrderLine struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Virtual   bool
}

// BuyerName nombre completo del comprador.
func (o *Order) BuyerName() string {
	switch {
	case o.BuyerFirstName == "":
		return o.BuyerLastName
	case o.BuyerLastName == "":
		return o.BuyerFirstName
	}
	return o.BuyerFirstName + " " + o.BuyerLastName
}
