package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseOnMutation(t *testing.T) {
	t.Setenv("STOCK_COLLAPSE_ON_MUTATION", "")
	assert.True(t, CollapseOnMutation())
	t.Setenv("STOCK_COLLAPSE_ON_MUTATION", "false")
	assert.False(t, CollapseOnMutation())
	t.Setenv("STOCK_COLLAPSE_ON_MUTATION", "Yes")
	assert.True(t, CollapseOnMutation())
}

func TestConcurrencyRetryLimit(t *testing.T) {
	t.Setenv("STOCK_CONCURRENCY_RETRY_LIMIT", "")
	assert.Equal(t, 3, ConcurrencyRetryLimit())
	t.Setenv("STOCK_CONCURRENCY_RETRY_LIMIT", "5")
	assert.Equal(t, 5, ConcurrencyRetryLimit())
	t.Setenv("STOCK_CONCURRENCY_RETRY_LIMIT", "-2")
	assert.Equal(t, 3, ConcurrencyRetryLimit())
}

func TestStoreLocation(t *testing.T) {
	t.Setenv("STORE_TIMEZONE", "")
	assert.Equal(t, "Asia/Tokyo", StoreLocation().String())
	t.Setenv("STORE_TIMEZONE", "Nowhere/Atlantis")
	assert.Equal(t, "UTC", StoreLocation().String())
}

func TestMySQLDSN(t *testing.T) {
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_HOST", "/cloudsql/proj:region:inst")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "ledger")
	assert.Equal(t, "u:p@unix(/cloudsql/proj:region:inst)/ledger?multiStatements=true&parseTime=true&loc=UTC", MySQLDSN())
}
