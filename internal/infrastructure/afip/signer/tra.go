// Armado del TRA (loginTicketRequest) de WSAA.

package signer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// traWindow margen hacia atrás y hacia adelante de "ahora" en el TRA.
// Cubre la diferencia de reloj con WSAA; no es configurable.
const traWindow = 10 * time.Minute

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// uniqueIDs genera uniqueId basados en el reloj y estrictamente crecientes.
type uniqueIDs struct {
	mu   sync.Mutex
	last int64
}

func (u *uniqueIDs) next(now time.Time) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	id := now.Unix()
	if id <= u.last {
		id = u.last + 1
	}
	u.last = id
	return id
}

// BuildRequest arma el TRA para el servicio con generationTime = now-10m y
// expirationTime = now+10m. Devuelve los bytes canónicos (C14N) con declaración XML.
func (s *CMSSigner) BuildRequest(service string, now time.Time) ([]byte, error) {
	if service == "" {
		return nil, fmt.Errorf("tra: servicio vacío")
	}
	now = now.In(afip.ArgentinaTZ)

	doc := etree.NewDocument()
	root := doc.CreateElement("loginTicketRequest")
	root.CreateAttr("version", "1.0")
	header := root.CreateElement("header")
	header.CreateElement("uniqueId").SetText(fmt.Sprintf("%d", s.ids.next(now)))
	header.CreateElement("generationTime").SetText(now.Add(-traWindow).Format(time.RFC3339))
	header.CreateElement("expirationTime").SetText(now.Add(traWindow).Format(time.RFC3339))
	root.CreateElement("service").SetText(service)

	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("tra: serializar: %w", err)
	}
	canonical, err := c14n.Canonicalize(xml.NewDecoder(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("tra: c14n: %w", err)
	}
	return append([]byte(xmlHeader), canonical...), nil
}
