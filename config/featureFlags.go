package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultStoreTimezone = "Asia/Tokyo"

// CollapseOnMutation reports whether stores on the collapsed-average keep rule
// get their lots collapsed right after every stock mutation.
//
// Set via env:
// - STOCK_COLLAPSE_ON_MUTATION=false (default true)
func CollapseOnMutation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STOCK_COLLAPSE_ON_MUTATION")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ConcurrencyRetryLimit bounds how many times a mutation is retried after a lock conflict.
//
// Set via env:
// - STOCK_CONCURRENCY_RETRY_LIMIT=3
func ConcurrencyRetryLimit() int {
	v := strings.TrimSpace(os.Getenv("STOCK_CONCURRENCY_RETRY_LIMIT"))
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// StoreLocation is the timezone used to compute "today" for bundle status transitions.
//
// Set via env:
// - STORE_TIMEZONE=Asia/Tokyo
func StoreLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("STORE_TIMEZONE"))
	if name == "" {
		name = defaultStoreTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
