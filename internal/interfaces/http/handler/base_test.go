package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performHandleError(t *testing.T, err error) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	h := &BaseHandler{}
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		c.Set("request_id", "req-123")
		h.HandleError(c, err)
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHandleError(t *testing.T) {
	t.Run("maps not found domain errors to 404", func(t *testing.T) {
		w, resp := performHandleError(t, shared.ErrNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
		assert.Equal(t, "req-123", resp.Error.RequestID)
	})

	t.Run("maps unknown domain codes to 422", func(t *testing.T) {
		err := shared.NewDomainError("INVALID_TRANSITION", "Invoice cannot be finalized in its current state")
		w, resp := performHandleError(t, err)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_TRANSITION", resp.Error.Code)
		assert.Equal(t, "Invoice cannot be finalized in its current state", resp.Error.Message)
	})

	t.Run("hides non-domain error details", func(t *testing.T) {
		w, resp := performHandleError(t, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "connection refused")
	})

	t.Run("unwraps wrapped domain errors", func(t *testing.T) {
		wrapped := errors.Join(errors.New("while recording payment"), shared.ErrNotFound)
		w, _ := performHandleError(t, wrapped)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSystemHandler(t *testing.T) {
	h := NewSystemHandler()
	router := gin.New()
	router.GET("/system/ping", h.Ping)
	router.GET("/system/info", h.GetSystemInfo)

	t.Run("ping responds with pong", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/system/ping", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pong")
	})

	t.Run("info reports name and uptime", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/system/info", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool               `json:"success"`
			Data    SystemInfoResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Praxis Backend API", resp.Data.Name)
		assert.NotEmpty(t, resp.Data.GoVersion)
		assert.NotEmpty(t, resp.Data.Uptime)
	})
}
