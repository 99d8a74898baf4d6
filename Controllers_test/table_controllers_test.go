package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllTables(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/admin/tables", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/admin/tables", nil, env.adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["status"])
	assert.Len(t, body["data"], 4)
}

func TestCloseAndReopenTable(t *testing.T) {
	env := setupEnv(t)
	admin := env.adminToken(t)
	nasi := env.product(t, "Nasi Goreng")

	w := env.submit(t, "T01", "", "tA", item(nasi, 1))
	require.Equal(t, http.StatusOK, w.Code)
	oldSession := decode(t, w)["sessionId"].(string)

	w = env.do(t, http.MethodPost, "/admin/tables/T01/close", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	table := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "closed", table["status"])

	// reads report the closed table as a normal result
	body := env.state(t, "T01", "tA")
	assert.Equal(t, true, body["tableClosed"])
	assert.Equal(t, "Warung Demo", body["restaurantName"])
	assert.Contains(t, body["message"], "closed")

	w = env.submit(t, "T01", oldSession, "tA", item(nasi, 2))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, true, decode(t, w)["tableClosed"])

	w = env.do(t, http.MethodPost, "/admin/tables/T01/close", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code, "closing twice is harmless")

	w = env.do(t, http.MethodPost, "/admin/tables/T01/open", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)

	// the old device still sees its seating as closed
	w = env.do(t, http.MethodGet, "/order-state/T01?session="+oldSession, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["tableClosed"])

	// a fresh scan starts over
	fresh := env.state(t, "T01", "tZ")
	assert.Nil(t, fresh["order"])

	w = env.do(t, http.MethodPost, "/admin/tables/T404/close", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
