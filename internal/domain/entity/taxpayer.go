package entity

import "github.com/jhoicas/afip-facturacion/pkg/afip"

// Taxpayer datos de un contribuyente según el padrón. Found=false si no figura.
type Taxpayer struct {
	Found            bool
	TaxID            string // CUIT formateado XX-XXXXXXXX-X
	Name             string
	PersonType       string
	IVACondition     string
	IVAConditionCode afip.IVACondition
	Address          string
	Status           string
}
