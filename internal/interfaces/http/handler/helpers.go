package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/interfaces/http/dto"
)

// bindListRequest binds pagination query parameters, falling back to defaults
func bindListRequest(c *gin.Context) dto.ListRequest {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		return dto.DefaultListRequest()
	}
	return req
}

// toFilter converts a list request to a domain filter
func toFilter(req dto.ListRequest) shared.Filter {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search
	return filter
}

// parseIDParam parses a UUID path parameter
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
