package persistence

import (
	"strings"

	"github.com/praxis/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// applySharedSearch applies the free-text search from a shared.Filter across
// the given columns.
func applySharedSearch(query *gorm.DB, filter shared.Filter, searchColumns []string) *gorm.DB {
	if filter.Search == "" || len(searchColumns) == 0 {
		return query
	}

	pattern := "%" + filter.Search + "%"
	conds := make([]string, len(searchColumns))
	args := make([]any, len(searchColumns))
	for i, col := range searchColumns {
		conds[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	return query.Where(strings.Join(conds, " OR "), args...)
}

// applySharedFilter applies search, pagination and ordering from a
// shared.Filter. Ordering falls back to created_at DESC.
func applySharedFilter(query *gorm.DB, filter shared.Filter, searchColumns []string) *gorm.DB {
	query = applySharedSearch(query, filter, searchColumns)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}
