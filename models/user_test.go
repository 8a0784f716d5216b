package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func defaults(addrs []Address) int {
	n := 0
	for _, a := range addrs {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestAddAddressFirstBecomesDefault(t *testing.T) {
	addrs := AddAddress(nil, Address{City: "Pune"})
	require.Len(t, addrs, 1)
	assert.True(t, addrs[0].IsDefault)
	assert.False(t, addrs[0].ID.IsZero())

	addrs = AddAddress(addrs, Address{City: "Delhi"})
	assert.True(t, addrs[0].IsDefault)
	assert.False(t, addrs[1].IsDefault)

	addrs = AddAddress(addrs, Address{City: "Goa", IsDefault: true})
	assert.Equal(t, 1, defaults(addrs))
	assert.True(t, addrs[2].IsDefault)
}

func TestSetDefaultAndRemove(t *testing.T) {
	addrs := AddAddress(nil, Address{City: "A"})
	addrs = AddAddress(addrs, Address{City: "B"})
	addrs = AddAddress(addrs, Address{City: "C"})

	addrs, err := SetDefaultAddress(addrs, addrs[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults(addrs))
	assert.True(t, addrs[2].IsDefault)

	addrs, err = RemoveAddress(addrs, addrs[2].ID)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.True(t, addrs[0].IsDefault)

	_, err = RemoveAddress(addrs, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestReplaceAddressKeepsDefault(t *testing.T) {
	addrs := AddAddress(nil, Address{City: "A"})
	addrs = AddAddress(addrs, Address{City: "B"})

	upd := addrs[0]
	upd.City = "A2"
	upd.IsDefault = false
	addrs, err := ReplaceAddress(addrs, upd)
	require.NoError(t, err)
	assert.Equal(t, "A2", addrs[0].City)
	assert.True(t, addrs[0].IsDefault)

	upd = addrs[1]
	upd.IsDefault = true
	addrs, err = ReplaceAddress(addrs, upd)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults(addrs))
	assert.True(t, addrs[1].IsDefault)

	u := User{Addresses: addrs}
	d, ok := u.DefaultAddress()
	require.True(t, ok)
	assert.Equal(t, addrs[1].ID, d.ID)
}

func TestProductStock(t *testing.T) {
	p := Product{Sizes: []SizeStock{{Size: "M", Stock: 3}, {Size: "L", Stock: 0}}, Stock: 99}
	n, ok := p.StockFor("m")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, "M", p.CanonicalSize("m"))

	_, ok = p.StockFor("")
	assert.False(t, ok)
	assert.Equal(t, 3, TotalStock(p.Sizes, 99))

	plain := Product{Stock: 7}
	n, ok = plain.StockFor("")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	_, ok = plain.StockFor("XL")
	assert.False(t, ok)
	assert.Equal(t, 7, TotalStock(nil, 7))
}

func TestNormalizeTagsAndRatings(t *testing.T) {
	assert.Equal(t, []string{"cotton", "summer"}, NormalizeTags([]string{" Cotton", "summer", "COTTON", ""}))

	s := SummarizeRatings([]RatingBucket{{Rating: 5, Count: 2}, {Rating: 4, Count: 1}, {Rating: 9, Count: 4}})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 4.7, s.Average)
	assert.Equal(t, 2, s.Distribution[5])
	assert.Equal(t, 0, s.Distribution[1])

	assert.Equal(t, int64(49999), ToMinorUnits(499.99))
	assert.Equal(t, int64(1005), ToMinorUnits(10.05))
}
