package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	clock      *fakeClock
	events     *recorder
	sessions   *SessionService
	admission  *AdmissionService
	orders     *OrderService
	lifecycle  *LifecycleService
	restaurant models.Restaurant
	table      models.Table
	p1, p2     models.Product
}

// newTestDB opens a private in-memory sqlite database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.Product{},
		&models.TableOrder{},
		&models.ApprovalRequest{},
		&models.User{},
	))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		db:     newTestDB(t),
		clock:  &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		events: &recorder{},
	}

	f.restaurant = models.Restaurant{Name: "Warung Senja"}
	require.NoError(t, f.db.Create(&f.restaurant).Error)
	f.table = models.Table{RestaurantID: f.restaurant.ID, Code: "T01", Status: models.TableOpen}
	require.NoError(t, f.db.Create(&f.table).Error)
	f.p1 = models.Product{RestaurantID: f.restaurant.ID, Name: "Nasi Goreng", Price: decimal.RequireFromString("5.00"), Available: true}
	require.NoError(t, f.db.Create(&f.p1).Error)
	f.p2 = models.Product{RestaurantID: f.restaurant.ID, Name: "Es Teh", Price: decimal.RequireFromString("2.50"), Available: true}
	require.NoError(t, f.db.Create(&f.p2).Error)

	deps := Deps{DB: f.db, Events: f.events, Now: f.clock.Now}
	var err error
	f.sessions, err = NewSessionService(deps, "test-secret")
	require.NoError(t, err)
	f.admission, err = NewAdmissionService(deps, DefaultApprovalTTL)
	require.NoError(t, err)
	f.orders = NewOrderService(deps, f.sessions, f.admission, NewDBCatalog(f.db))
	f.lifecycle = NewLifecycleService(deps, f.sessions)
	return f
}

func (f *fixture) ref() string {
	return fmt.Sprint(f.table.ID)
}

// read performs a GET and returns the rotated session.
func (f *fixture) read(t *testing.T, customerToken string) *OrderState {
	t.Helper()
	state, err := f.orders.State(f.ctx, f.ref(), "", customerToken)
	require.NoError(t, err)
	return state
}

func (f *fixture) submit(session, token string, items ...ItemInput) (*OrderState, error) {
	return f.orders.Submit(f.ctx, f.ref(), SubmitInput{
		RestaurantID:  f.restaurant.ID,
		Items:         items,
		CustomerToken: token,
		SessionID:     session,
	})
}

func line(p models.Product, qty int) ItemInput {
	return ItemInput{ProductID: p.ID, Quantity: qty}
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}

// seatTwoGuests leaves tA as first contributor and tB admitted by approval.
func (f *fixture) seatTwoGuests(t *testing.T) string {
	t.Helper()
	s := f.read(t, "tA").SessionID
	_, err := f.submit(s, "tA", line(f.p1, 2))
	require.NoError(t, err)

	s = f.read(t, "tB").SessionID
	_, err = f.submit(s, "tB", line(f.p2, 1))
	var required *ApprovalRequiredError
	require.ErrorAs(t, err, &required)
	require.NoError(t, f.admission.Resolve(f.ctx, f.ref(), required.RequestID, ActionApprove, "tA"))
	return f.read(t, "tB").SessionID
}
