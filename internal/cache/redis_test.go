package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, time.Minute, 5*time.Second), mr
}

func TestBookingViewRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	miss, gen, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)
	assert.Nil(t, miss)
	assert.Zero(t, gen)

	view := &domain.BookingView{
		Booking: domain.Booking{
			BookingID: "BK1",
			Amount:    decimal.RequireFromString("2000.50"),
			Status:    domain.BookingStatusConfirmed,
			PDFURL:    "https://receipts/bookings/BK1/receipt.pdf",
		},
		InstitutionName: "Hill School",
	}
	require.NoError(t, c.SetBookingView(ctx, view, gen))
	assert.True(t, mr.Exists("cache:booking:BK1"))

	got, _, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hill School", got.InstitutionName)
	assert.True(t, view.Amount.Equal(got.Amount))
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)

	require.NoError(t, c.InvalidateBooking(ctx, "BK1"))
	assert.False(t, mr.Exists("cache:booking:BK1"))
	genValue, err := mr.Get("cache:booking:BK1:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", genValue)
}

func TestBookingViewExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetBookingView(ctx, &domain.BookingView{Booking: domain.Booking{BookingID: "BK1"}}, 0))
	mr.FastForward(2 * time.Minute)

	got, _, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetBookingView_SkipsAfterInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, gen, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateBooking(ctx, "BK1"))

	pending := &domain.BookingView{Booking: domain.Booking{BookingID: "BK1", Status: domain.BookingStatusPending}}
	require.NoError(t, c.SetBookingView(ctx, pending, gen))
	assert.False(t, mr.Exists("cache:booking:BK1"))

	miss, fresh, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)
	assert.Nil(t, miss)
	assert.Equal(t, gen+1, fresh)

	confirmed := &domain.BookingView{Booking: domain.Booking{BookingID: "BK1", Status: domain.BookingStatusConfirmed}}
	require.NoError(t, c.SetBookingView(ctx, confirmed, fresh))
	got, _, err := c.GetBookingView(ctx, "BK1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
}

func TestLockBooking(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	unlock, err := c.LockBooking(ctx, "BK1")
	require.NoError(t, err)

	_, err = c.LockBooking(ctx, "BK1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := c.LockBooking(ctx, "BK2")
	require.NoError(t, err)
	other()

	unlock()
	again, err := c.LockBooking(ctx, "BK1")
	require.NoError(t, err)
	again()
}

func TestLockBooking_RedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	unlock, err := c.LockBooking(context.Background(), "BK1")

	assert.Nil(t, unlock)
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.NotErrorIs(t, err, ErrLocked)
}
