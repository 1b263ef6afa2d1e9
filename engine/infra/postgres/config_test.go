package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	t.Run("Should pass through an explicit conn string", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://forge:secret@db:5432/appforge"}
		assert.Equal(t, "postgres://forge:secret@db:5432/appforge", dsn(cfg))
	})

	t.Run("Should synthesize a dsn with defaults for empty fields", func(t *testing.T) {
		got := dsn(&Config{})
		assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=postgres sslmode=disable", got)
	})

	t.Run("Should prefer explicit fields over defaults", func(t *testing.T) {
		cfg := &Config{
			Host:     "db.internal",
			Port:     "5433",
			User:     "forge",
			Password: "secret",
			DBName:   "appforge",
			SSLMode:  "require",
		}
		got := dsn(cfg)
		assert.Equal(t, "host=db.internal port=5433 user=forge password=secret dbname=appforge sslmode=require", got)
	})
}

func TestDeriveConnectionBounds(t *testing.T) {
	t.Run("Should fall back to defaults", func(t *testing.T) {
		maxConns, minConns := deriveConnectionBounds(&Config{})
		assert.Equal(t, int32(20), maxConns)
		assert.Equal(t, int32(0), minConns)
	})

	t.Run("Should honor explicit bounds", func(t *testing.T) {
		maxConns, minConns := deriveConnectionBounds(&Config{MaxOpenConns: 50, MaxIdleConns: 10})
		assert.Equal(t, int32(50), maxConns)
		assert.Equal(t, int32(10), minConns)
	})

	t.Run("Should clamp idle conns to the max", func(t *testing.T) {
		maxConns, minConns := deriveConnectionBounds(&Config{MaxOpenConns: 5, MaxIdleConns: 40})
		assert.Equal(t, int32(5), maxConns)
		assert.Equal(t, int32(5), minConns)
	})
}

func TestClampIntToInt32WithLimit(t *testing.T) {
	t.Run("Should clamp to the limit and floor at zero", func(t *testing.T) {
		assert.Equal(t, int32(0), clampIntToInt32WithLimit(-1, 10))
		assert.Equal(t, int32(0), clampIntToInt32WithLimit(5, 0))
		assert.Equal(t, int32(5), clampIntToInt32WithLimit(5, 10))
		assert.Equal(t, int32(10), clampIntToInt32WithLimit(15, 10))
	})
}
