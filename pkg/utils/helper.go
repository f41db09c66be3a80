package utils

import (
	"strconv"
)

// ParseInt converts a positive query value, falling back to defaultValue
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil || result < 1 {
		return defaultValue
	}
	return result
}

// CalculateTotalPages rounds up; an empty result has zero pages.
func CalculateTotalPages(total int64, perPage int) int {
	if perPage < 1 || total < 1 {
		return 0
	}
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	return int(pages)
}

func CalculateOffset(page, perPage int) int {
	if page < 2 || perPage < 1 {
		return 0
	}
	return (page - 1) * perPage
}
