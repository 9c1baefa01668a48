package services

import (
	"testing"
	"time"

	"parkinglot/database"
	"parkinglot/models"
	"parkinglot/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservationValidatesWindow(t *testing.T) {
	setupTestDB(t)
	seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	_, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(-time.Hour), now.Add(time.Hour), false, false)
	assert.Error(t, err)

	_, err = CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(2*time.Hour), now.Add(time.Hour), false, false)
	assert.Error(t, err)

	_, err = CreateReservation("ABC-1234", models.VehicleCar, "", "", now.AddDate(0, 0, 45), now.AddDate(0, 0, 46), false, false)
	assert.Error(t, err)

	_, err = CreateReservation("", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	assert.Error(t, err)
}

func TestCreateReservationHoldsSlot(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "Chen", "0987654321", now.Add(time.Hour), now.Add(3*time.Hour), false, false)
	require.NoError(t, err)

	assert.Contains(t, reservation.ReservationNumber, "RSV-")
	assert.Equal(t, models.ReservationConfirmed, reservation.Status)
	require.NotNil(t, reservation.SlotID)
	assert.Equal(t, slot.SlotID, *reservation.SlotID)

	stored := reloadSlot(t, slot.SlotID)
	assert.Equal(t, models.SlotReserved, stored.Status)
	assert.Equal(t, slot.Version+1, stored.Version)
}

func TestCreateReservationEncryptsContactPhone(t *testing.T) {
	setupTestDB(t)
	seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "Chen", "0987654321", now.Add(time.Hour), now.Add(3*time.Hour), false, false)
	require.NoError(t, err)

	var stored models.Reservation
	require.NoError(t, database.DB.First(&stored, reservation.ReservationID).Error)
	assert.NotEqual(t, "0987654321", stored.ContactPhone)

	decrypted, err := utils.DecryptContactInfo(stored.ContactPhone)
	require.NoError(t, err)
	assert.Equal(t, "0987654321", decrypted)
}

func TestCreateReservationNoAvailability(t *testing.T) {
	setupTestDB(t)
	now := time.Now().UTC()

	_, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	assert.ErrorIs(t, err, ErrNoAvailabilityForWindow)
}

func TestCreateReservationHonorsEVConstraint(t *testing.T) {
	setupTestDB(t)
	seedSlot(t, "A-01", models.VehicleCar)
	evSlot := seedSlot(t, "A-02", models.VehicleCar, withDistance(9), withEV())
	now := time.Now().UTC()

	reservation, err := CreateReservation("EV-0001", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), true, false)
	require.NoError(t, err)
	require.NotNil(t, reservation.SlotID)
	assert.Equal(t, evSlot.SlotID, *reservation.SlotID)
}

func TestCreateReservationExcludesOverlappingHolds(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	// 既有預約壓著這個車位，即使車位狀態被復原清掃誤判為 available，
	// 重疊時間窗的新預約也不能拿同一個車位
	existing := models.Reservation{
		ReservationNumber: "RSV-existing",
		LicensePlate:      "OLD-0001",
		VehicleType:       models.VehicleCar,
		ReservedFrom:      now.Add(time.Hour),
		ReservedUntil:     now.Add(4 * time.Hour),
		Status:            models.ReservationConfirmed,
		SlotID:            &slot.SlotID,
		CreatedAt:         now,
	}
	require.NoError(t, database.DB.Create(&existing).Error)

	_, err := CreateReservation("NEW-0001", models.VehicleCar, "", "", now.Add(2*time.Hour), now.Add(3*time.Hour), false, false)
	assert.ErrorIs(t, err, ErrNoAvailabilityForWindow)

	// 時間窗完全錯開就可以用同一個車位
	reservation, err := CreateReservation("NEW-0001", models.VehicleCar, "", "", now.Add(5*time.Hour), now.Add(6*time.Hour), false, false)
	require.NoError(t, err)
	require.NotNil(t, reservation.SlotID)
	assert.Equal(t, slot.SlotID, *reservation.SlotID)
}

func TestCancelReservationReleasesSlot(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)

	require.NoError(t, CancelReservation(reservation.ReservationNumber))

	stored, err := GetReservationByNumber(reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, stored.Status)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, slot.SlotID).Status)

	err = CancelReservation(reservation.ReservationNumber)
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

func TestSweepExpiredReservations(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)

	// 還沒過期，清掃不動它
	swept, err := SweepExpiredReservations()
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Updates(map[string]interface{}{
			"reserved_from":  now.Add(-3 * time.Hour),
			"reserved_until": now.Add(-time.Hour),
		}).Error)

	swept, err = SweepExpiredReservations()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	stored, err := GetReservationByNumber(reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationExpired, stored.Status)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, slot.SlotID).Status)

	// 重複清掃是冪等的
	swept, err = SweepExpiredReservations()
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, slot.SlotID).Status)
}

func TestSweepLeavesOccupiedSlotToCheckIn(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)

	// 進場已經搶贏車位 CAS（reserved→occupied），票券交易尚未提交，
	// 預約列還停在 confirmed 且已逾期。清掃可以吃掉預約列，
	// 但不得把占用中的車位放回 available
	require.NoError(t, database.DB.Model(&models.ParkingSlot{}).
		Where("slot_id = ?", slot.SlotID).
		Update("status", models.SlotOccupied).Error)
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Updates(map[string]interface{}{
			"reserved_from":  now.Add(-3 * time.Hour),
			"reserved_until": now.Add(-time.Hour),
		}).Error)

	swept, err := SweepExpiredReservations()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	stored, err := GetReservationByNumber(reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationExpired, stored.Status)
	assert.Equal(t, models.SlotOccupied, reloadSlot(t, slot.SlotID).Status)
}

func TestCancelLeavesOccupiedSlotToCheckIn(t *testing.T) {
	setupTestDB(t)
	slot := seedSlot(t, "A-01", models.VehicleCar)
	now := time.Now().UTC()

	reservation, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)

	require.NoError(t, database.DB.Model(&models.ParkingSlot{}).
		Where("slot_id = ?", slot.SlotID).
		Update("status", models.SlotOccupied).Error)

	require.NoError(t, CancelReservation(reservation.ReservationNumber))

	stored, err := GetReservationByNumber(reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, stored.Status)
	assert.Equal(t, models.SlotOccupied, reloadSlot(t, slot.SlotID).Status)
}

func TestGetReservationsByPlate(t *testing.T) {
	setupTestDB(t)
	seedSlot(t, "A-01", models.VehicleCar)
	seedSlot(t, "A-02", models.VehicleCar)
	now := time.Now().UTC()

	_, err := CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)
	_, err = CreateReservation("ABC-1234", models.VehicleCar, "", "", now.Add(3*time.Hour), now.Add(4*time.Hour), false, false)
	require.NoError(t, err)

	reservations, err := GetReservationsByPlate("ABC-1234")
	require.NoError(t, err)
	assert.Len(t, reservations, 2)

	reservations, err = GetReservationsByPlate("NOPE-0000")
	require.NoError(t, err)
	assert.Empty(t, reservations)
}

func TestGetReservationByNumberNotFound(t *testing.T) {
	setupTestDB(t)
	reservation, err := GetReservationByNumber("RSV-missing")
	require.NoError(t, err)
	assert.Nil(t, reservation)
}
