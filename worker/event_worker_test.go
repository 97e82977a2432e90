package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/store"
)

func newHandler(t *testing.T) (*Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	clock := ledger.NewFixedClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return &Handler{
		Ledger:  ledger.New(clock, ledger.WithStore(mem)),
		Batches: ledger.NewMemoryBatchFilter(time.Minute, 10),
		Allowed: func(g int64) bool { return g == -1 },
	}, mem
}

func TestHandle_CheckIn(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	disp, err := h.Handle(ctx, []byte(`{"type":"checkin","group_id":-1,"user_id":7,"display_name":"<b>Asha</b>","batch_id":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, Ack, disp)

	disp, err = h.Handle(ctx, []byte(`{"type":"checkin","group_id":-1,"user_id":7,"display_name":"Asha","batch_id":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, Ack, disp)

	assert.Equal(t, 1, h.Ledger.Streak(-1, 7))
	assert.Equal(t, []ledger.Member{{ID: 7, Name: "Asha"}}, h.Ledger.Submitted(-1))
}

func TestHandle_Member(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	_, err := h.Handle(ctx, []byte(`{"type":"member","group_id":-1,"user_id":8,"display_name":"Ravi"}`))
	require.NoError(t, err)
	_, err = h.Handle(ctx, []byte(`{"type":"member","group_id":-1,"user_id":9,"display_name":"Gone","status":"left"}`))
	require.NoError(t, err)

	assert.Equal(t, []ledger.Member{{ID: 8, Name: "Ravi"}}, h.Ledger.Members(-1))
	assert.Empty(t, h.Ledger.Submitted(-1))
}

func TestHandle_DropsBadEvents(t *testing.T) {
	h, _ := newHandler(t)
	for _, body := range []string{
		`not json`,
		`{"type":"wave","group_id":-1,"user_id":7}`,
		`{"type":"checkin","group_id":-1}`,
		`{"type":"checkin","group_id":-99,"user_id":7}`,
	} {
		disp, err := h.Handle(context.Background(), []byte(body))
		assert.Error(t, err, body)
		assert.Equal(t, Ack, disp, body)
	}
	assert.Empty(t, h.Ledger.Members(-1))
}

func TestHandle_PersistenceFailureIsAcked(t *testing.T) {
	h, mem := newHandler(t)
	mem.SetFailSaves(true)

	disp, err := h.Handle(context.Background(), []byte(`{"type":"checkin","group_id":-1,"user_id":7,"display_name":"Asha"}`))
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.Equal(t, Ack, disp)
	assert.Equal(t, 1, h.Ledger.Streak(-1, 7))
}

func TestDial_RequiresSettings(t *testing.T) {
	_, err := Dial("", "q")
	assert.Error(t, err)
	_, err = Dial("amqp://localhost", "")
	assert.Error(t, err)
}
