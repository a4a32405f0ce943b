package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a sort direction to ASC or DESC, falling back
// to defaultDir for anything else
func ValidateSortOrder(orderDir, defaultDir string) string {
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	return defaultDir
}

// ValidateSortField checks the sort field against a whitelist of allowed columns.
// Returns defaultField if the input is empty or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ProductSortFields contains the columns a storefront listing may sort by
var ProductSortFields = map[string]bool{
	"name":       true,
	"min_price":  true,
	"max_price":  true,
	"created_at": true,
	"updated_at": true,
}
