// Package redis implementa la caché de tickets WSAA sobre Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
)

var _ repository.TicketRepository = (*TicketStore)(nil)

const (
	defaultKeyPrefix = "afip:ta:"
	minLockTTL       = 30 * time.Second
	lockMargin       = 30 * time.Second
	lockRetryEvery   = 100 * time.Millisecond
)

// releaseScript borra el lock solo si sigue siendo nuestro.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// TicketStore guarda un ticket por CUIT con expiración absoluta (EXAT).
type TicketStore struct {
	client    *goredis.Client
	keyPrefix string
	lockTTL   time.Duration
	now       func() time.Time
	newToken  func() string
}

// Config conexión a Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient abre la conexión y verifica con PING.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a redis: %w", err)
	}
	return client, nil
}

// NewTicketStore construye el store sobre un cliente existente. loginBudget es
// la duración máxima de un login WSAA: el lock de emisión vive al menos eso más
// un margen, para que no expire mientras el dueño sigue emitiendo.
func NewTicketStore(client *goredis.Client, loginBudget time.Duration) *TicketStore {
	return &TicketStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		lockTTL:   lockTTLFor(loginBudget),
		now:       time.Now,
		newToken:  func() string { return uuid.New().String() },
	}
}

// WithClock reemplaza el reloj (tests).
func (s *TicketStore) WithClock(now func() time.Time) *TicketStore {
	s.now = now
	return s
}

type ticketRecord struct {
	CUIT      string    `json:"cuit"`
	Service   string    `json:"service"`
	Token     string    `json:"token"`
	Sign      string    `json:"sign"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func lockTTLFor(loginBudget time.Duration) time.Duration {
	if ttl := loginBudget + lockMargin; ttl > minLockTTL {
		return ttl
	}
	return minLockTTL
}

func (s *TicketStore) key(cuit string) string     { return s.keyPrefix + cuit }
func (s *TicketStore) lockKey(cuit string) string { return s.keyPrefix + "lock:" + cuit }

// Get devuelve el ticket vigente o nil, nil.
func (s *TicketStore) Get(ctx context.Context, cuit string) (*entity.AuthTicket, error) {
	raw, err := s.client.Get(ctx, s.key(cuit)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get ticket: %w", err)
	}
	var rec ticketRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decodificar ticket: %w", err)
	}
	t := &entity.AuthTicket{
		IssuerTaxID: rec.CUIT,
		Service:     rec.Service,
		Token:       rec.Token,
		Sign:        rec.Sign,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
	}
	if !t.ValidAt(s.now()) {
		return nil, nil
	}
	return t, nil
}

// Put reemplaza el ticket del CUIT; Redis lo expira en ExpiresAt.
func (s *TicketStore) Put(ctx context.Context, t *entity.AuthTicket) error {
	payload, err := json.Marshal(ticketRecord{
		CUIT:      t.IssuerTaxID,
		Service:   t.Service,
		Token:     t.Token,
		Sign:      t.Sign,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("codificar ticket: %w", err)
	}
	err = s.client.SetArgs(ctx, s.key(t.IssuerTaxID), string(payload), goredis.SetArgs{ExpireAt: t.ExpiresAt}).Err()
	if err != nil {
		return fmt.Errorf("redis set ticket: %w", err)
	}
	return nil
}

// Invalidate borra el ticket del CUIT.
func (s *TicketStore) Invalidate(ctx context.Context, cuit string) error {
	if err := s.client.Del(ctx, s.key(cuit)).Err(); err != nil {
		return fmt.Errorf("redis del ticket: %w", err)
	}
	return nil
}

// WithMintLock espera el lock SETNX del CUIT, ejecuta fn y lo libera.
// El TTL supera la duración de un login, y solo libera el lock un proceso caído.
func (s *TicketStore) WithMintLock(ctx context.Context, cuit string, fn func(ctx context.Context) error) error {
	key := s.lockKey(cuit)
	owner := s.newToken()
	for {
		ok, err := s.client.SetNX(ctx, key, owner, s.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("redis lock ticket: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryEvery):
		}
	}
	defer func() {
		// contexto propio: el del caller puede estar cancelado
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.client.Eval(rctx, releaseScript, []string{key}, owner).Err()
	}()
	return fn(ctx)
}
