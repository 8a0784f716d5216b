package models

import (
	"context"
	"math/rand"
	"strings"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	skuAttempts  = 5
	skuSuffixLen = 6
	skuAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// SKUExists reports whether a SKU is already taken.
type SKUExists func(ctx context.Context, sku string) (bool, error)

// GenerateSKU tries a handful of random SKUs derived from the product name
// and falls back to one derived from a fresh ObjectID.
func GenerateSKU(ctx context.Context, name string, exists SKUExists) (string, error) {
	prefix := skuPrefix(name)
	for i := 0; i < skuAttempts; i++ {
		candidate := prefix + "-" + randomSuffix(skuSuffixLen)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	hex := primitive.NewObjectID().Hex()
	return "SKU-" + strings.ToUpper(hex[len(hex)-8:]), nil
}

func skuPrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	for b.Len() < 3 {
		b.WriteByte('X')
	}
	return b.String()
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = skuAlphabet[rand.Intn(len(skuAlphabet))]
	}
	return string(b)
}

func NormalizeSKU(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
