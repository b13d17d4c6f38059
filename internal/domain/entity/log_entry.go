package entity

import "time"

// LogEntry registro operativo persistido en afip_log.
type LogEntry struct {
	Level     string
	Message   string
	OrderRef  string
	Data      []byte // JSON del evento completo
	CreatedAt time.Time
}
