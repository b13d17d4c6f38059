package entity

import "time"

// AuthTicket ticket de acceso (TA) devuelto por WSAA. Uno vigente por CUIT.
type AuthTicket struct {
	IssuerTaxID string
	Service     string
	Token       string
	Sign        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// ValidAt indica si el ticket puede usarse en el instante dado (expiración estrictamente futura).
func (t *AuthTicket) ValidAt(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}
