package pgorders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t,
		"pgx5://u:p@h:5432/db?sslmode=disable&x-migrations-table=logitrack_schema_migrations",
		migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	require.Equal(t,
		"pgx5://u:p@h/db?x-migrations-table=logitrack_schema_migrations",
		migrateURL("postgresql://u:p@h/db"))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	require.Equal(t, "plain", escapeLike("plain"))
}

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "logitrack_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/logitrack_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func newOrder(code, sender, recipient string) models.Order {
	return models.Order{
		TrackingCode:          code,
		Sender:                models.Party{Name: sender, Address: "1 Main St"},
		Recipient:             models.Party{Name: recipient, Address: "9 Side Rd", Email: "r@example.com"},
		Weight:                decimal.RequireFromString("2.50"),
		ServiceClass:          models.ServiceExpress,
		Status:                models.StatusPending,
		CurrentLocation:       "1 Main St",
		EstimatedDeliveryDate: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
}

func firstEvent() models.TrackingEvent {
	return models.TrackingEvent{Status: models.StatusPending, Location: "1 Main St", Notes: "Order received, awaiting processing"}
}

func TestPGOrders_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	uid := int64(42)
	o := newOrder("LT100000001", "Alice", "Bob")
	o.UserID = &uid
	created, err := st.CreateOrder(ctx, o, firstEvent())
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, created.Weight.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, &uid, created.UserID)
	require.Nil(t, created.ActualDeliveryDate)

	// тот же код второй раз -> ErrDuplicateTrackingCode, первое событие не должно остаться
	_, err = st.CreateOrder(ctx, newOrder("LT100000001", "Eve", "Mallory"), firstEvent())
	require.ErrorIs(t, err, models.ErrDuplicateTrackingCode)

	exists, err := st.TrackingCodeExists(ctx, "LT100000001")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = st.TrackingCodeExists(ctx, "LT999999999")
	require.NoError(t, err)
	require.False(t, exists)

	got, err := st.GetOrderByTrackingCode(ctx, "LT100000001")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = st.GetOrderByID(ctx, created.ID+1000)
	require.ErrorIs(t, err, models.ErrNotFound)

	evs, err := st.ListTrackingEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, models.StatusPending, evs[0].Status)
	require.Nil(t, evs[0].ActingUserID)

	// переход внутри транзакции
	delivered := time.Now().UTC()
	admin := int64(7)
	err = st.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetOrderForUpdate(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusPending, cur.Status)

		_, err = tx.UpdateOrderStatus(ctx, StatusUpdate{
			OrderID:     created.ID,
			Status:      models.StatusDelivered,
			Location:    "9 Side Rd",
			DeliveredAt: &delivered,
		})
		require.NoError(t, err)
		_, err = tx.AppendTrackingEvent(ctx, models.TrackingEvent{
			OrderID:      created.ID,
			Status:       models.StatusDelivered,
			Location:     "9 Side Rd",
			ActingUserID: &admin,
		})
		return err
	})
	require.NoError(t, err)

	got, err = st.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, got.Status)
	require.Equal(t, "9 Side Rd", got.CurrentLocation)
	require.NotNil(t, got.ActualDeliveryDate)
	require.WithinDuration(t, delivered, *got.ActualDeliveryDate, time.Second)

	evs, err = st.ListTrackingEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, models.StatusDelivered, evs[0].Status)
	require.Equal(t, &admin, evs[0].ActingUserID)
	require.Greater(t, evs[0].ID, evs[1].ID)

	stats, err := st.CountOrdersByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, models.OrderStats{Total: 1, Delivered: 1}, stats)

	code, err := st.DeleteOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "LT100000001", code)
	_, err = st.DeleteOrder(ctx, created.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	evs, err = st.ListTrackingEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, evs)
}

func TestPGOrders_InTxRollsBack(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	created, err := st.CreateOrder(ctx, newOrder("LT100000002", "Alice", "Bob"), firstEvent())
	require.NoError(t, err)

	boom := models.ErrInvalidTransition
	err = st.InTx(ctx, func(tx Tx) error {
		_, err := tx.UpdateOrderStatus(ctx, StatusUpdate{OrderID: created.ID, Status: models.StatusCancelled, Location: "x"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, got.Status)
}

func TestPGOrders_ListOrders(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	a, err := st.CreateOrder(ctx, newOrder("LT100000010", "Alice Smith", "Bob"), firstEvent())
	require.NoError(t, err)
	b, err := st.CreateOrder(ctx, newOrder("LT100000011", "Carol", "Dave 100%"), firstEvent())
	require.NoError(t, err)

	all, err := st.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, b.ID, all[0].ID) // новые сначала

	found, err := st.ListOrders(ctx, models.OrderFilter{Search: "smith"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, a.ID, found[0].ID)

	found, err = st.ListOrders(ctx, models.OrderFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, b.ID, found[0].ID)

	found, err = st.ListOrders(ctx, models.OrderFilter{Search: "LT1000000"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	delivered := models.StatusDelivered
	found, err = st.ListOrders(ctx, models.OrderFilter{Status: &delivered})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestPGOrders_ConcurrentTransitionsSerialize(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	created, err := st.CreateOrder(ctx, newOrder("LT100000020", "Alice", "Bob"), firstEvent())
	require.NoError(t, err)

	// оба пытаются завершить заказ; терминальный статус должен выиграть ровно один
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for _, target := range []models.Status{models.StatusDelivered, models.StatusCancelled} {
		wg.Add(1)
		go func(target models.Status) {
			defer wg.Done()
			_ = st.InTx(ctx, func(tx Tx) error {
				cur, err := tx.GetOrderForUpdate(ctx, created.ID)
				if err != nil {
					return err
				}
				if cur.Status.Terminal() {
					return models.ErrInvalidTransition
				}
				if _, err := tx.UpdateOrderStatus(ctx, StatusUpdate{OrderID: cur.ID, Status: target, Location: "hub"}); err != nil {
					return err
				}
				if _, err := tx.AppendTrackingEvent(ctx, models.TrackingEvent{OrderID: cur.ID, Status: target, Location: "hub"}); err != nil {
					return err
				}
				mu.Lock()
				applied++
				mu.Unlock()
				return nil
			})
		}(target)
	}
	wg.Wait()

	require.Equal(t, 1, applied)
	evs, err := st.ListTrackingEvents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
}

func TestPGOrders_TimelineMatchesOrderUnderWrites(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	created, err := st.CreateOrder(ctx, newOrder("LT100000030", "Alice", "Bob"), firstEvent())
	require.NoError(t, err)

	_, _, err = st.GetOrderTimeline(ctx, "LT000000000")
	require.ErrorIs(t, err, models.ErrNotFound)

	done := make(chan struct{})
	go func() {
		defer close(done)
		statuses := []models.Status{models.StatusInTransit, models.StatusOutForDelivery}
		for i := 0; i < 40; i++ {
			target := statuses[i%2]
			_ = st.InTx(ctx, func(tx Tx) error {
				if _, err := tx.UpdateOrderStatus(ctx, StatusUpdate{OrderID: created.ID, Status: target, Location: "hub"}); err != nil {
					return err
				}
				_, err := tx.AppendTrackingEvent(ctx, models.TrackingEvent{OrderID: created.ID, Status: target, Location: "hub"})
				return err
			})
		}
	}()

	for {
		select {
		case <-done:
			o, evs, err := st.GetOrderTimeline(ctx, created.TrackingCode)
			require.NoError(t, err)
			require.Len(t, evs, 41)
			require.Equal(t, o.Status, evs[0].Status)
			return
		default:
		}
		o, evs, err := st.GetOrderTimeline(ctx, created.TrackingCode)
		require.NoError(t, err)
		require.NotEmpty(t, evs)
		require.Equal(t, o.Status, evs[0].Status)
	}
}
