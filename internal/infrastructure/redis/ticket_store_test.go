package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

const (
	cuit        = "20111111112"
	loginBudget = 6 * time.Minute
)

func newStore(t *testing.T, now time.Time) (*TicketStore, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	s := NewTicketStore(client, loginBudget).WithClock(func() time.Time { return now })
	s.newToken = func() string { return "owner-1" }
	return s, mock
}

func encoded(t *testing.T, tk *entity.AuthTicket) string {
	t.Helper()
	b, err := json.Marshal(ticketRecord{
		CUIT: tk.IssuerTaxID, Service: tk.Service, Token: tk.Token, Sign: tk.Sign,
		ExpiresAt: tk.ExpiresAt, CreatedAt: tk.CreatedAt,
	})
	require.NoError(t, err)
	return string(b)
}

func TestTicketStore_PutYGet(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s, mock := newStore(t, now)
	tk := &entity.AuthTicket{
		IssuerTaxID: cuit, Service: "wsfe", Token: "T", Sign: "S",
		ExpiresAt: now.Add(12 * time.Hour), CreatedAt: now,
	}
	payload := encoded(t, tk)

	mock.ExpectSetArgs("afip:ta:"+cuit, payload, goredis.SetArgs{ExpireAt: tk.ExpiresAt}).SetVal("OK")
	mock.ExpectGet("afip:ta:" + cuit).SetVal(payload)

	require.NoError(t, s.Put(context.Background(), tk))
	got, err := s.Get(context.Background(), cuit)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "T", got.Token)
	assert.True(t, got.ExpiresAt.Equal(tk.ExpiresAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_Get_VencidoNoSeSirve(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s, mock := newStore(t, now)
	tk := &entity.AuthTicket{IssuerTaxID: cuit, Token: "T", Sign: "S", ExpiresAt: now.Add(-time.Second)}

	mock.ExpectGet("afip:ta:" + cuit).SetVal(encoded(t, tk))

	got, err := s.Get(context.Background(), cuit)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTicketStore_Get_Ausente(t *testing.T) {
	s, mock := newStore(t, time.Now())
	mock.ExpectGet("afip:ta:" + cuit).RedisNil()

	got, err := s.Get(context.Background(), cuit)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTicketStore_Get_ErrorDeRedis(t *testing.T) {
	s, mock := newStore(t, time.Now())
	mock.ExpectGet("afip:ta:" + cuit).SetErr(errors.New("connection refused"))

	_, err := s.Get(context.Background(), cuit)
	assert.Error(t, err)
}

func TestTicketStore_Invalidate(t *testing.T) {
	s, mock := newStore(t, time.Now())
	mock.ExpectDel("afip:ta:" + cuit).SetVal(1)

	require.NoError(t, s.Invalidate(context.Background(), cuit))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_WithMintLock_EsperaYLibera(t *testing.T) {
	s, mock := newStore(t, time.Now())
	lock := "afip:ta:lock:" + cuit

	mock.ExpectSetNX(lock, "owner-1", loginBudget+lockMargin).SetVal(false)
	mock.ExpectSetNX(lock, "owner-1", loginBudget+lockMargin).SetVal(true)
	mock.ExpectEval(releaseScript, []string{lock}, "owner-1").SetVal(int64(1))

	calls := 0
	err := s.WithMintLock(context.Background(), cuit, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketStore_WithMintLock_ContextoCancelado(t *testing.T) {
	s, mock := newStore(t, time.Now())
	lock := "afip:ta:lock:" + cuit
	mock.ExpectSetNX(lock, "owner-1", loginBudget+lockMargin).SetVal(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WithMintLock(ctx, cuit, func(ctx context.Context) error {
		t.Fatal("no debe ejecutarse sin lock")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewTicketStore_LockCubreElLogin(t *testing.T) {
	client, _ := redismock.NewClientMock()

	s := NewTicketStore(client, loginBudget)
	assert.GreaterOrEqual(t, s.lockTTL, loginBudget)

	// un presupuesto chico nunca baja del mínimo
	assert.Equal(t, minLockTTL, NewTicketStore(client, 0).lockTTL)
}
