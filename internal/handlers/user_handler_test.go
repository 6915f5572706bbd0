package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"notebook-api/internal/database"
	"notebook-api/internal/models"
	"notebook-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestGetAllUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	require.NoError(t, db.Create(&models.User{ID: "u-1", Username: "alice", PasswordHash: "x"}).Error)
	require.NoError(t, db.Create(&models.User{ID: "u-2", Username: "bob", PasswordHash: "x"}).Error)

	r := gin.New()
	r.GET("/api/users", GetAllUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Users []UserResponse `json:"users"`
		Count int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	// Password hashes must never appear in the payload.
	require.NotContains(t, w.Body.String(), "password")
}
