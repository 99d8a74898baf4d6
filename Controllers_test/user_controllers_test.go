package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-table-cart/database"
)

func TestLogin(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodPost, "/login", gin.H{"email": database.DemoSeed.AdminEmail, "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/login", gin.H{"email": database.DemoSeed.AdminEmail}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/login", gin.H{"email": database.DemoSeed.AdminEmail, "password": database.DemoSeed.AdminPassword}, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, "admin", data["user_role"])
}

func TestRegisterAndProfile(t *testing.T) {
	env := setupEnv(t)
	admin := env.adminToken(t)

	w := env.do(t, http.MethodGet, "/admin/profile", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, database.DemoSeed.AdminEmail, profile["email"])

	chef := gin.H{"name": "Chef", "email": "Chef@Example.com", "password": "secret-pass", "role": "chef"}
	w = env.do(t, http.MethodPost, "/admin/users", chef, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/admin/users", gin.H{"name": "X", "email": "x@example.com", "password": "secret-pass", "role": "owner"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	chefToken := env.login(t, "chef@example.com", "secret-pass")

	// chefs can follow the kitchen but not run tables or staff accounts
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/admin/orders", nil, chefToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/admin/tables/T01/close", nil, chefToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/admin/users", chef, chefToken).Code)

	w = env.do(t, http.MethodGet, "/admin/profile", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
