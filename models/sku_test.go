package models

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSKUFormat(t *testing.T) {
	sku, err := GenerateSKU(context.Background(), "Cotton Kurta", func(context.Context, string) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^COT-[A-Z0-9]{6}$`), sku)
}

func TestGenerateSKURetriesThenFallsBack(t *testing.T) {
	calls := 0
	sku, err := GenerateSKU(context.Background(), "ab", func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
	assert.Regexp(t, regexp.MustCompile(`^SKU-[0-9A-F]{8}$`), sku)
}

func TestGenerateSKUStopsOnFirstFree(t *testing.T) {
	calls := 0
	sku, err := GenerateSKU(context.Background(), "Saree", func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Regexp(t, `^SAR-`, sku)
}

func TestGenerateSKUPropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := GenerateSKU(context.Background(), "x", func(context.Context, string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSKUPrefix(t *testing.T) {
	assert.Equal(t, "ABX", skuPrefix("a-b"))
	assert.Equal(t, "XXX", skuPrefix("!!"))
	assert.Equal(t, "T4S", skuPrefix("t4 shirt"))
	assert.Equal(t, "ABC", NormalizeSKU(" abc "))
}
