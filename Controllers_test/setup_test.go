package Controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-table-cart/database"
	"github.com/yeremiapane/restaurant-table-cart/kds"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/router"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	restaurant *models.Restaurant
	hub        *kds.Hub
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db, "sqlite", false))
	return db
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	utils.InitLogger("error", "text")
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	restaurant, err := database.DemoSeed.Apply(context.Background(), db)
	require.NoError(t, err)

	hub := kds.NewHub()
	deps := services.Deps{DB: db, Events: hub}
	sessions, err := services.NewSessionService(deps, "controller-test-secret")
	require.NoError(t, err)
	admission, err := services.NewAdmissionService(deps, services.DefaultApprovalTTL)
	require.NoError(t, err)
	lifecycle := services.NewLifecycleService(deps, sessions)

	r := router.SetupRouter(router.Options{
		DB:           db,
		Orders:       services.NewOrderService(deps, sessions, admission, services.NewDBCatalog(db)),
		Admission:    admission,
		Lifecycle:    lifecycle,
		Hub:          hub,
		RateRequests: 1000,
		RateWindow:   time.Second,
	})
	return &testEnv{router: r, db: db, restaurant: restaurant, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) product(t *testing.T, name string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, e.db.Where("name = ? AND restaurant_id = ?", name, e.restaurant.ID).First(&p).Error)
	return p
}

// state reads the table the way a guest device does and returns the body.
func (e *testEnv) state(t *testing.T, table, customerToken string) map[string]interface{} {
	t.Helper()
	w := e.do(t, http.MethodGet, "/order-state/"+table+"?customerToken="+customerToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func (e *testEnv) submit(t *testing.T, table, session, customerToken string, items ...gin.H) *httptest.ResponseRecorder {
	t.Helper()
	if items == nil {
		items = []gin.H{}
	}
	return e.do(t, http.MethodPost, "/order-state/"+table, gin.H{
		"restaurantId":  e.restaurant.ID,
		"items":         items,
		"customerToken": customerToken,
		"sessionId":     session,
	}, "")
}

func item(p models.Product, qty int) gin.H {
	return gin.H{"product_id": p.ID, "quantity": qty}
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	return data["token"].(string)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.login(t, database.DemoSeed.AdminEmail, database.DemoSeed.AdminPassword)
}
