package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

func TestMemoryStoreUnknownIDIsEmpty(t *testing.T) {
	st := NewMemoryStore(time.Hour)
	s, err := st.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
	assert.NotNil(t, s.Cart.Items)
	assert.True(t, s.Cart.IsEmpty())
}

func TestMemoryStoreRoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Hour)

	s, _ := st.Load(ctx, "sid")
	s.Cart.Add(models.CartItem{ProductID: primitive.NewObjectID(), Quantity: 2, Price: 10})
	require.NoError(t, st.Save(ctx, s))
	assert.False(t, s.ExpiresAt.IsZero())

	// mutating the caller's copy must not leak into the store
	s.Cart.Items[0].Quantity = 99

	got, err := st.Load(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, got.Cart.Items, 1)
	assert.Equal(t, 2, got.Cart.Items[0].Quantity)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(-time.Second)

	s, _ := st.Load(ctx, "sid")
	s.Cart.CouponCode = "X"
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, got.Cart.CouponCode)
}
