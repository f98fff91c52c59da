package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, GetHTTPStatus(ErrCodeUnauthorized))
	assert.Equal(t, http.StatusTooManyRequests, GetHTTPStatus(ErrCodeRateLimited))
	assert.Equal(t, http.StatusRequestEntityTooLarge, GetHTTPStatus(ErrCodePayloadTooLarge))

	// Unknown transport codes are treated as internal failures
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_SOMETHING_NEW"))
}

func TestGetDomainHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, GetDomainHTTPStatus("INVALID_CREDENTIALS"))
	assert.Equal(t, http.StatusLocked, GetDomainHTTPStatus("ACCOUNT_LOCKED"))
	assert.Equal(t, http.StatusForbidden, GetDomainHTTPStatus("PRACTICE_SUSPENDED"))
	assert.Equal(t, http.StatusNotFound, GetDomainHTTPStatus("NOT_FOUND"))
	assert.Equal(t, http.StatusConflict, GetDomainHTTPStatus("EMAIL_TAKEN"))
	assert.Equal(t, http.StatusBadGateway, GetDomainHTTPStatus("BILLING_UNAVAILABLE"))

	// Business rule refusals default to 422
	assert.Equal(t, http.StatusUnprocessableEntity, GetDomainHTTPStatus("STORAGE_QUOTA_EXCEEDED"))
	assert.Equal(t, http.StatusUnprocessableEntity, GetDomainHTTPStatus("INVALID_TRANSITION"))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "email", Message: "email is required"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a", "b"}, 41, 2, 20)

	assert.True(t, resp.Success)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
