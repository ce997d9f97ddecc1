package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "imperio:events", cfg.EventChannel)
	assert.True(t, decimal.NewFromInt(15).Equal(cfg.MinimumOrderAmount()))
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.InstantDiscountPercent()))
}

func TestMinimumOrderFallback(t *testing.T) {
	cfg := &Config{MinimumOrder: "abc", InstantDiscountPct: "-1"}
	assert.Equal(t, "15", cfg.MinimumOrderAmount().String())
	assert.Equal(t, "5", cfg.InstantDiscountPercent().String())

	cfg = &Config{MinimumOrder: "20.50", InstantDiscountPct: "10"}
	assert.Equal(t, "20.5", cfg.MinimumOrderAmount().String())
	assert.Equal(t, "10", cfg.InstantDiscountPercent().String())
}
