package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

// 原生 SQL 條件（vip = ?、vip_discount_percent 等）依賴這些欄位名，
// gorm 預設命名策略會把 VIP 拆成 v_ip，這裡鎖住實際對映的欄位名
func TestColumnNamesMatchRawQueries(t *testing.T) {
	cache := &sync.Map{}
	namer := schema.NamingStrategy{}

	cases := []struct {
		model interface{}
		field string
		want  string
	}{
		{&ParkingSlot{}, "VIP", "vip"},
		{&ParkingSlot{}, "EVCapable", "ev_capable"},
		{&ParkingSlot{}, "PendingStatus", "pending_status"},
		{&ParkingSlot{}, "DistanceToGate", "distance_to_gate"},
		{&Reservation{}, "VIP", "vip"},
		{&Reservation{}, "EVRequired", "ev_required"},
		{&Reservation{}, "ReservedUntil", "reserved_until"},
		{&Ticket{}, "VIP", "vip"},
		{&Ticket{}, "EVUsed", "ev_used"},
		{&Ticket{}, "EntryTime", "entry_time"},
		{&PricingRule{}, "VIPDiscountPercent", "vip_discount_percent"},
		{&PricingRule{}, "EVChargingRate", "ev_charging_rate"},
		{&PricingRule{}, "EffectiveFrom", "effective_from"},
	}
	for _, tc := range cases {
		parsed, err := schema.Parse(tc.model, cache, namer)
		require.NoError(t, err)
		field := parsed.LookUpField(tc.field)
		require.NotNil(t, field, "%T.%s", tc.model, tc.field)
		assert.Equal(t, tc.want, field.DBName, "%T.%s", tc.model, tc.field)
	}
}
