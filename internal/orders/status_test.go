package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gasvida/gas-orders/internal/auth"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		role auth.Role
		from Status
		to   Status
		ok   bool
	}{
		{"seller starts preparing", auth.RoleSeller, StatusPending, StatusPreparing, true},
		{"buyer cannot start preparing", auth.RoleBuyer, StatusPending, StatusPreparing, false},
		{"seller dispatches", auth.RoleSeller, StatusPreparing, StatusOnDelivery, true},
		{"seller delivers", auth.RoleSeller, StatusOnDelivery, StatusDelivered, true},
		{"buyer cancels pending", auth.RoleBuyer, StatusPending, StatusCancelled, true},
		{"seller cancels pending", auth.RoleSeller, StatusPending, StatusCancelled, true},
		{"buyer cannot cancel preparing", auth.RoleBuyer, StatusPreparing, StatusCancelled, false},
		{"seller cancels preparing", auth.RoleSeller, StatusPreparing, StatusCancelled, true},
		{"nobody cancels on_delivery", auth.RoleSeller, StatusOnDelivery, StatusCancelled, false},
		{"admin does not transition", auth.RoleAdmin, StatusPending, StatusPreparing, false},
		{"no skipping ahead", auth.RoleSeller, StatusPending, StatusOnDelivery, false},
		{"no leaving delivered", auth.RoleSeller, StatusDelivered, StatusPending, false},
		{"no leaving cancelled", auth.RoleSeller, StatusCancelled, StatusPreparing, false},
		{"no backwards step", auth.RoleSeller, StatusOnDelivery, StatusPreparing, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.role, tc.from, tc.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusPreparing.Terminal())
	assert.False(t, StatusOnDelivery.Terminal())
}

func TestEffectOf(t *testing.T) {
	assert.Equal(t, EffectDeduct, EffectOf(StatusPending, StatusPreparing))
	assert.Equal(t, EffectRestore, EffectOf(StatusPreparing, StatusCancelled))
	assert.Equal(t, EffectNone, EffectOf(StatusPending, StatusCancelled))
	assert.Equal(t, EffectNone, EffectOf(StatusPreparing, StatusOnDelivery))
	assert.Equal(t, EffectNone, EffectOf(StatusOnDelivery, StatusDelivered))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPreparing, StatusOnDelivery, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("shipped").Valid())
	assert.False(t, Status("").Valid())
}
