package services

import (
	"testing"
	"time"

	"parkinglot/database"
	"parkinglot/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 測試用 schema：模型標籤帶的是 MySQL 的 enum 型別，sqlite 吃不下，
// 所以測試直接下 DDL 建表
var testSchema = []string{
	`CREATE TABLE parking_slot (
		slot_id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot_code TEXT NOT NULL UNIQUE,
		floor INTEGER NOT NULL DEFAULT 0,
		row_index INTEGER NOT NULL DEFAULT 0,
		col_index INTEGER NOT NULL DEFAULT 0,
		distance_to_gate INTEGER NOT NULL DEFAULT 0,
		vehicle_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		pending_status TEXT NOT NULL DEFAULT '',
		ev_capable NUMERIC NOT NULL DEFAULT 0,
		vip NUMERIC NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE ticket (
		ticket_id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_number TEXT NOT NULL UNIQUE,
		license_plate TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		slot_id INTEGER NOT NULL,
		gate_id TEXT,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME,
		duration_minutes INTEGER DEFAULT 0,
		fee REAL DEFAULT 0,
		payment_method TEXT,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		status TEXT NOT NULL DEFAULT 'active',
		ev_used NUMERIC DEFAULT 0,
		vip NUMERIC DEFAULT 0,
		reservation_id INTEGER
	)`,
	`CREATE TABLE reservation (
		reservation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_number TEXT NOT NULL UNIQUE,
		license_plate TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		contact_name TEXT,
		contact_phone TEXT,
		reserved_from DATETIME NOT NULL,
		reserved_until DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		slot_id INTEGER,
		ev_required NUMERIC DEFAULT 0,
		vip NUMERIC DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE pricing_rule (
		rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_type TEXT NOT NULL,
		base_price REAL NOT NULL DEFAULT 0,
		hourly_rate REAL NOT NULL DEFAULT 0,
		daily_rate REAL NOT NULL DEFAULT 0,
		penalty_rate REAL DEFAULT 0,
		ev_charging_rate REAL DEFAULT 0,
		vip_discount_percent REAL DEFAULT 0,
		effective_from DATETIME NOT NULL,
		is_active NUMERIC DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE maintenance_alert (
		alert_id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot_id INTEGER NOT NULL,
		alert_type TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL DEFAULT 'low',
		status TEXT NOT NULL DEFAULT 'open',
		created_at DATETIME,
		resolved_at DATETIME
	)`,
	`CREATE TABLE operator (
		operator_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL
	)`,
}

// setupTestDB 以 in-memory sqlite 取代 database.DB，單連線避免
// 每個連線各自一份記憶體資料庫
func setupTestDB(t *testing.T) {
	t.Helper()
	t.Setenv("AES_KEY", "0123456789abcdef0123456789abcdef")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range testSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}

	database.DB = db
}

type slotOption func(*models.ParkingSlot)

func withFloor(floor int) slotOption {
	return func(s *models.ParkingSlot) { s.Floor = floor }
}

func withDistance(distance int) slotOption {
	return func(s *models.ParkingSlot) { s.DistanceToGate = distance }
}

func withCoords(row, col int) slotOption {
	return func(s *models.ParkingSlot) { s.RowIndex, s.ColIndex = row, col }
}

func withEV() slotOption {
	return func(s *models.ParkingSlot) { s.EVCapable = true }
}

func withVIP() slotOption {
	return func(s *models.ParkingSlot) { s.VIP = true }
}

func seedSlot(t *testing.T, code, vehicleType string, opts ...slotOption) *models.ParkingSlot {
	t.Helper()
	slot := &models.ParkingSlot{
		SlotCode:    code,
		VehicleType: vehicleType,
		Status:      models.SlotAvailable,
	}
	for _, opt := range opts {
		opt(slot)
	}
	require.NoError(t, database.DB.Create(slot).Error)
	return slot
}

func seedCarRule(t *testing.T) *models.PricingRule {
	t.Helper()
	rule := &models.PricingRule{
		VehicleType:        models.VehicleCar,
		BasePrice:          20.00,
		HourlyRate:         10.00,
		DailyRate:          150.00,
		PenaltyRate:        20.00,
		EVChargingRate:     30.00,
		VIPDiscountPercent: 15.00,
		EffectiveFrom:      time.Now().UTC().Add(-24 * time.Hour),
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, database.DB.Create(rule).Error)
	return rule
}

func reloadSlot(t *testing.T, slotID int) *models.ParkingSlot {
	t.Helper()
	var slot models.ParkingSlot
	require.NoError(t, database.DB.First(&slot, slotID).Error)
	return &slot
}
