package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKitchenOrders(t *testing.T) {
	env := setupEnv(t)
	admin := env.adminToken(t)
	nasi := env.product(t, "Nasi Goreng")
	teh := env.product(t, "Es Teh")

	w := env.submit(t, "T01", "", "tA", item(nasi, 1), item(teh, 2))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	orderID := body["order"].(map[string]interface{})["id"].(float64)

	w = env.do(t, http.MethodPost, "/place/T01", gin.H{"sessionId": body["sessionId"]}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/admin/orders?status=processed", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode(t, w)["data"].([]interface{})
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].(map[string]interface{})["id"])

	w = env.do(t, http.MethodGet, "/admin/orders?status=pending", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])

	w = env.do(t, http.MethodGet, "/admin/orders?status=cooking", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/admin/orders/%d/items/processed", int(orderID))
	w = env.do(t, http.MethodPatch, path, gin.H{"product_id": teh.ID, "customer_token": "tA"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	order := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "processed", order["order_status"])
	for _, raw := range order["order_items"].([]interface{}) {
		line := raw.(map[string]interface{})
		assert.Equal(t, line["product_id"] == float64(teh.ID), line["processed"])
	}

	w = env.do(t, http.MethodPatch, path, gin.H{"product_id": teh.ID, "customer_token": "tX"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/admin/orders/abc/items/processed", gin.H{"product_id": teh.ID, "customer_token": "tA"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
