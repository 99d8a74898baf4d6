package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

// maxUpdateAttempts bounds optimistic retries on a contended order row.
const maxUpdateAttempts = 5

const (
	maxTokenLength       = 128
	maxFingerprintLength = 255
)

// Deps are the collaborators shared by every table cart service.
type Deps struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) publish(ctx context.Context, event events.Event) {
	if d.Events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}
	if err := d.Events.Publish(ctx, event); err != nil {
		utils.ErrorLogger.WithField("event", event.Type).Printf("publish failed: %v", err)
	}
}

// findTable resolves a table by numeric id or by its printed code.
func findTable(ctx context.Context, db *gorm.DB, ref string) (*models.Table, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalid("table_id", "is required")
	}

	var table models.Table
	q := db.WithContext(ctx)
	var err error
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		err = q.Where("id = ?", id).First(&table).Error
	} else {
		err = q.Where("code = ?", ref).First(&table).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{What: "table " + ref}
	}
	if err != nil {
		return nil, transient("load table", err)
	}
	return &table, nil
}

// currentOrder returns the table's open order, or nil when the next write
// has to create one.
func currentOrder(ctx context.Context, db *gorm.DB, table *models.Table) (*models.TableOrder, error) {
	if table.CurrentOrderID == nil {
		return nil, nil
	}
	return loadOrder(ctx, db, *table.CurrentOrderID)
}

func loadOrder(ctx context.Context, db *gorm.DB, id uint) (*models.TableOrder, error) {
	var order models.TableOrder
	err := db.WithContext(ctx).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{What: fmt.Sprintf("order %d", id)}
	}
	if err != nil {
		return nil, transient("load order", err)
	}
	return &order, nil
}

func closedError(ctx context.Context, db *gorm.DB, table *models.Table) error {
	var restaurant models.Restaurant
	name := ""
	if err := db.WithContext(ctx).First(&restaurant, table.RestaurantID).Error; err == nil {
		name = restaurant.Name
	}

	msg := "This table is closed. Please ask the staff for help or scan the table code again."
	if name != "" {
		msg = fmt.Sprintf("This table at %s is closed. Please ask the staff for help or scan the table code again.", name)
	}
	return &TableClosedError{TableID: table.ID, RestaurantName: name, Message: msg}
}

func validToken(field, token string) error {
	if strings.TrimSpace(token) == "" {
		return invalid(field, "is required")
	}
	if len(token) > maxTokenLength {
		return invalid(field, "must be at most %d characters", maxTokenLength)
	}
	return nil
}

// validFingerprint keeps the optional device fingerprint within its column.
func validFingerprint(fingerprint string) error {
	if len(fingerprint) > maxFingerprintLength {
		return invalid("customerFingerprint", "must be at most %d characters", maxFingerprintLength)
	}
	return nil
}
