// Package pagination clamps paging parameters and validates sort orders
// against per-entity column whitelists before they reach SQL.
package pagination

import (
	"strings"
)

const (
	MaxPageSize   = 100
	MaxOffset     = 100000
	DefaultLimit  = 25
	DefaultOffset = 0
)

// SanitizeSortOrder keeps only whitelisted "column [ASC|DESC]" parts of
// sortOrder and falls back to defaultSort when nothing valid remains.
func SanitizeSortOrder(sortOrder string, columnWhitelist map[string]bool, defaultSort string) string {
	if sortOrder == "" {
		return defaultSort
	}

	var validParts []string
	for _, part := range strings.Split(sortOrder, ",") {
		tokens := strings.Fields(part)
		if len(tokens) == 0 {
			continue
		}

		column := strings.ToLower(tokens[0])
		direction := "ASC"
		if len(tokens) > 1 {
			dir := strings.ToUpper(tokens[1])
			if dir == "DESC" || dir == "ASC" {
				direction = dir
			}
		}

		if columnWhitelist[column] {
			validParts = append(validParts, column+" "+direction)
		}
	}

	if len(validParts) == 0 {
		return defaultSort
	}
	return strings.Join(validParts, ", ")
}

// ClampPaginationParams ensures limit and offset are within safe bounds
func ClampPaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = DefaultOffset
	} else if offset > MaxOffset {
		offset = MaxOffset
	}
	return limit, offset
}

// ConnectionSortColumns defines valid sort columns for connections
var ConnectionSortColumns = map[string]bool{
	"id":         true,
	"host":       true,
	"user":       true,
	"port":       true,
	"created_at": true,
	"updated_at": true,
}
