package logger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
)

// DBWriter persiste en la base los eventos de nivel >= MinLevel.
// La inserción corre en una goroutine aparte con una cola acotada: si la cola
// está llena el evento se descarta. Un fallo al guardar nunca llega al llamador.
type DBWriter struct {
	repo     repository.LogRepository
	minLevel zerolog.Level
	queue    chan *entity.LogEntry
	timeout  time.Duration

	mu     sync.RWMutex // protege closed y el envío a queue frente a Close
	closed bool
	once   sync.Once
	done   chan struct{}
}

// NewDBWriter arranca el escritor. Llamar a Close al apagar para vaciar la cola.
func NewDBWriter(repo repository.LogRepository, minLevel zerolog.Level, buffer int) *DBWriter {
	if buffer <= 0 {
		buffer = 256
	}
	w := &DBWriter{
		repo:     repo,
		minLevel: minLevel,
		queue:    make(chan *entity.LogEntry, buffer),
		timeout:  2 * time.Second,
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Write implementa io.Writer; sin nivel explícito se lee del JSON.
func (w *DBWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implementa zerolog.LevelWriter.
func (w *DBWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}
	if level == zerolog.NoLevel {
		if s, ok := fields[zerolog.LevelFieldName].(string); ok {
			if l, err := zerolog.ParseLevel(s); err == nil {
				level = l
			}
		}
	}
	if level < w.minLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return len(p), nil
	}

	entry := &entity.LogEntry{
		Level:     level.String(),
		Data:      append([]byte(nil), p...),
		CreatedAt: time.Now(),
	}
	entry.Message, _ = fields[zerolog.MessageFieldName].(string)
	entry.OrderRef, _ = fields["order_ref"].(string)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}
	select {
	case w.queue <- entry:
	default:
		// cola llena: se descarta
	}
	return len(p), nil
}

func (w *DBWriter) run() {
	defer close(w.done)
	for entry := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		_ = w.repo.Insert(ctx, entry)
		cancel()
	}
}

// Close deja de aceptar eventos y espera a que se persistan los encolados.
// Los eventos escritos después de Close se descartan.
func (w *DBWriter) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
}
