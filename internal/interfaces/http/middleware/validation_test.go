package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestFormatValidationErrors(t *testing.T) {
	type createClientRequest struct {
		Email string `json:"email" binding:"required,email"`
		Name  string `json:"name" binding:"required,min=2"`
	}

	SetupValidator()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/clients", func(c *gin.Context) {
		var req createClientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	t.Run("returns per-field details for invalid input", func(t *testing.T) {
		body := strings.NewReader(`{"email": "invalid", "name": "x"}`)
		req := httptest.NewRequest("POST", "/clients", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)
		require.Len(t, resp.Error.Details, 2)

		// Field names come from json tags, not Go field names
		fields := []string{resp.Error.Details[0].Field, resp.Error.Details[1].Field}
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "name")
	})

	t.Run("passes through valid input", func(t *testing.T) {
		body := strings.NewReader(`{"email": "client@example.com", "name": "Dana Reyes"}`)
		req := httptest.NewRequest("POST", "/clients", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("falls back to raw message for non-validator errors", func(t *testing.T) {
		resp := FormatValidationErrors(assert.AnError, "req-9")
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-9", resp.Error.RequestID)
		assert.Empty(t, resp.Error.Details)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `binding:"required"`
		Email    string `binding:"email"`
		Min      string `binding:"min=5"`
		MinInt   int    `binding:"min=3"`
		Max      string `binding:"max=10"`
		Len      string `binding:"len=5"`
		UUID     string `binding:"uuid"`
		OneOf    string `binding:"oneof=solo firm enterprise"`
		GTE      int    `binding:"gte=10"`
		LTE      int    `binding:"lte=100"`
		URL      string `binding:"url"`
		Numeric  string `binding:"numeric"`
	}

	v := validator.New()
	v.SetTagName("binding")

	invalid := input{
		Required: "",
		Email:    "not-an-email",
		Min:      "ab",
		MinInt:   1,
		Max:      "this is way too long",
		Len:      "ab",
		UUID:     "not-a-uuid",
		OneOf:    "trial",
		GTE:      5,
		LTE:      200,
		URL:      "not a url",
		Numeric:  "abc",
	}

	err := v.Struct(invalid)
	require.Error(t, err)
	validationErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)

	messages := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		messages[e.StructField()] = getValidationMessage(e)
	}

	assert.Equal(t, "This field is required", messages["Required"])
	assert.Equal(t, "Must be a valid email address", messages["Email"])
	assert.Equal(t, "Must be at least 5 characters", messages["Min"])
	assert.Equal(t, "Must be at least 3", messages["MinInt"])
	assert.Equal(t, "Must be at most 10 characters", messages["Max"])
	assert.Equal(t, "Must be exactly 5 characters", messages["Len"])
	assert.Equal(t, "Must be a valid UUID", messages["UUID"])
	assert.Equal(t, "Must be one of: solo firm enterprise", messages["OneOf"])
	assert.Equal(t, "Must be greater than or equal to 10", messages["GTE"])
	assert.Equal(t, "Must be less than or equal to 100", messages["LTE"])
	assert.Equal(t, "Must be a valid URL", messages["URL"])
	assert.Equal(t, "Must be a numeric value", messages["Numeric"])
}

func TestHandleValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("carries the request id from context", func(t *testing.T) {
		type input struct {
			Name string `json:"name" binding:"required"`
		}

		router := gin.New()
		router.POST("/test", func(c *gin.Context) {
			c.Set("request_id", "req-42")
			var in input
			if err := c.ShouldBindJSON(&in); err != nil {
				HandleValidationError(c, err)
				return
			}
		})

		body := strings.NewReader(`{}`)
		req := httptest.NewRequest("POST", "/test", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-42", resp.Error.RequestID)
	})
}
