package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-table-cart/models"
)

func TestApprovalSweeper(t *testing.T) {
	f := newFixture(t)
	f.openOrderWithGuest(t)
	_, err := f.admission.RequestAccess(f.ctx, f.ref(), "tB", "")
	require.NoError(t, err)

	sweeper := NewApprovalSweeper(f.db, DefaultApprovalTTL)
	sweeper.Now = f.clock.Now

	removed, err := sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "open requests stay")

	// expired, but the requester may still come back for the outcome
	f.clock.Advance(30 * time.Second)
	removed, err = sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.clock.Advance(15 * time.Second)
	removed, err = sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, f.db.Model(&models.ApprovalRequest{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApprovalSweeperClosedOrders(t *testing.T) {
	f := newFixture(t)
	created, err := f.submit("", "tA", line(f.p1, 1))
	require.NoError(t, err)

	// a row that outlived its order, as after a crash between writes
	orphan := models.ApprovalRequest{
		ID: "orphan", TableID: f.table.ID, OrderID: created.Order.ID, RequesterToken: "tB",
		Status: models.ApprovalPending, ExpiresAt: f.clock.Now().Add(time.Hour),
		CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&orphan).Error)
	require.NoError(t, f.db.Model(&models.TableOrder{}).Where("id = ?", created.Order.ID).
		Update("order_status", models.OrderClosed).Error)

	sweeper := NewApprovalSweeper(f.db, DefaultApprovalTTL)
	sweeper.Now = f.clock.Now
	removed, err := sweeper.Sweep(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
