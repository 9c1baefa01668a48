package services

import (
	"testing"
	"time"

	"parkinglot/database"
	"parkinglot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backdateEntry(t *testing.T, ticketNumber string, minutes int) {
	t.Helper()
	require.NoError(t, database.DB.Model(&models.Ticket{}).
		Where("ticket_number = ?", ticketNumber).
		Update("entry_time", time.Now().UTC().Add(-time.Duration(minutes)*time.Minute)).Error)
}

func TestCheckInWalkIn(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seeded := seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)

	assert.Contains(t, ticket.TicketNumber, "TKT-")
	assert.Equal(t, models.TicketActive, ticket.Status)
	assert.Equal(t, models.PaymentPending, ticket.PaymentStatus)
	assert.Equal(t, seeded.SlotID, ticket.SlotID)
	assert.Nil(t, ticket.ReservationID)

	stored := reloadSlot(t, seeded.SlotID)
	assert.Equal(t, models.SlotOccupied, stored.Status)
}

func TestCheckInRejectsWhenNoSlot(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)

	_, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCheckInValidatesInput(t *testing.T) {
	setupTestDB(t)

	_, err := CheckIn("", models.VehicleCar, "GATE-1", false, false, "")
	assert.Error(t, err)

	_, err = CheckIn("ABC-1234", "hovercraft", "GATE-1", false, false, "")
	assert.Error(t, err)
}

func TestCheckOutComputesFeeAndReleasesSlot(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seeded := seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)
	backdateEntry(t, ticket.TicketNumber, 105)

	result, err := CheckOut(ticket.TicketNumber, "credit_card", models.PaymentSuccess)
	require.NoError(t, err)

	// 105 分鐘進位 2 小時：20 + 2*10
	assert.Equal(t, 40.00, result.Fee)
	assert.Equal(t, 105, result.DurationMinutes)
	assert.Equal(t, models.PaymentSuccess, result.PaymentStatus)

	stored, err := GetTicketByNumber(ticket.TicketNumber)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TicketCompleted, stored.Status)
	assert.NotNil(t, stored.ExitTime)

	slot := reloadSlot(t, seeded.SlotID)
	assert.Equal(t, models.SlotAvailable, slot.Status)
}

func TestCheckOutVIPDiscount(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "V-01", models.VehicleCar, withVIP())

	ticket, err := CheckIn("VIP-0001", models.VehicleCar, "GATE-1", false, true, "")
	require.NoError(t, err)
	backdateEntry(t, ticket.TicketNumber, 105)

	result, err := CheckOut(ticket.TicketNumber, "e_wallet", models.PaymentSuccess)
	require.NoError(t, err)
	assert.Equal(t, 34.00, result.Fee)
}

func TestCheckOutTwiceRejected(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)

	_, err = CheckOut(ticket.TicketNumber, "cash", models.PaymentSuccess)
	require.NoError(t, err)

	_, err = CheckOut(ticket.TicketNumber, "cash", models.PaymentSuccess)
	assert.ErrorIs(t, err, ErrTicketNotActive)
}

func TestCheckOutUnknownTicket(t *testing.T) {
	setupTestDB(t)
	_, err := CheckOut("TKT-does-not-exist", "cash", models.PaymentSuccess)
	assert.ErrorIs(t, err, ErrTicketNotFound)

	err = CancelTicket("TKT-does-not-exist", "typo")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCheckOutAfterCancelRejected(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seeded := seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)
	require.NoError(t, CancelTicket(ticket.TicketNumber, "issued in error"))

	_, err = CheckOut(ticket.TicketNumber, "cash", models.PaymentSuccess)
	assert.ErrorIs(t, err, ErrTicketNotActive)

	// 終態不得被結帳重寫
	stored, err := GetTicketByNumber(ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, stored.Status)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, seeded.SlotID).Status)
}

func TestCheckOutWithoutPricingRule(t *testing.T) {
	setupTestDB(t)
	seeded := seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)

	_, err = CheckOut(ticket.TicketNumber, "cash", models.PaymentSuccess)
	assert.ErrorIs(t, err, ErrNoPricingRule)

	// 結帳失敗時票券與車位都不動
	stored, err := GetTicketByNumber(ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, models.TicketActive, stored.Status)
	assert.Equal(t, models.SlotOccupied, reloadSlot(t, seeded.SlotID).Status)
}

func TestCancelTicketReleasesSlot(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seeded := seedSlot(t, "A-01", models.VehicleCar)

	ticket, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)

	require.NoError(t, CancelTicket(ticket.TicketNumber, "issued in error"))

	stored, err := GetTicketByNumber(ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, stored.Status)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, seeded.SlotID).Status)

	err = CancelTicket(ticket.TicketNumber, "again")
	assert.ErrorIs(t, err, ErrTicketNotActive)
}

func TestCheckInWithReservationUsesHeldSlot(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	// 兩個車位，確認預約進場用的是保留的那一個，不另行搜尋
	seedSlot(t, "R-01", models.VehicleCar, withDistance(1))
	seedSlot(t, "R-02", models.VehicleCar, withDistance(9))

	now := time.Now().UTC()
	reservation, err := CreateReservation("RSV-CAR-1", models.VehicleCar, "Lin", "0912345678", now.Add(time.Hour), now.Add(3*time.Hour), false, false)
	require.NoError(t, err)
	require.NotNil(t, reservation.SlotID)

	// 預約會保留最近的車位，把時間窗拉到現在以便進場
	heldID := *reservation.SlotID
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Update("reserved_from", now.Add(-time.Minute)).Error)

	ticket, err := CheckIn("RSV-CAR-1", models.VehicleCar, "GATE-2", false, false, reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, heldID, ticket.SlotID)
	require.NotNil(t, ticket.ReservationID)
	assert.Equal(t, reservation.ReservationID, *ticket.ReservationID)

	stored, err := GetReservationByNumber(reservation.ReservationNumber)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, stored.Status)
	assert.Equal(t, models.SlotOccupied, reloadSlot(t, heldID).Status)
}

func TestCheckInWithReservationRejectsMismatch(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "R-01", models.VehicleCar)

	now := time.Now().UTC()
	reservation, err := CreateReservation("RSV-CAR-1", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(3*time.Hour), false, false)
	require.NoError(t, err)
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Update("reserved_from", now.Add(-time.Minute)).Error)

	_, err = CheckIn("OTHER-PLATE", models.VehicleCar, "GATE-2", false, false, reservation.ReservationNumber)
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

func TestCheckInWithReservationOutsideWindow(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "R-01", models.VehicleCar)

	now := time.Now().UTC()
	reservation, err := CreateReservation("RSV-CAR-1", models.VehicleCar, "", "", now.Add(2*time.Hour), now.Add(4*time.Hour), false, false)
	require.NoError(t, err)

	_, err = CheckIn("RSV-CAR-1", models.VehicleCar, "GATE-2", false, false, reservation.ReservationNumber)
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

func TestCheckInWithUnknownReservation(t *testing.T) {
	setupTestDB(t)
	_, err := CheckIn("ABC-1234", models.VehicleCar, "GATE-1", false, false, "RSV-does-not-exist")
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

func TestCheckInWithExpiredSweptReservation(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "R-01", models.VehicleCar)

	now := time.Now().UTC()
	reservation, err := CreateReservation("RSV-CAR-1", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)

	// 時間窗整個移到過去，清掃後進場必須被拒絕
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Updates(map[string]interface{}{
			"reserved_from":  now.Add(-3 * time.Hour),
			"reserved_until": now.Add(-time.Hour),
		}).Error)

	swept, err := SweepExpiredReservations()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = CheckIn("RSV-CAR-1", models.VehicleCar, "GATE-2", false, false, reservation.ReservationNumber)
	assert.ErrorIs(t, err, ErrReservationInvalid)
}

func TestCheckOutOverstayPenalty(t *testing.T) {
	setupTestDB(t)
	seedCarRule(t)
	seedSlot(t, "R-01", models.VehicleCar)

	now := time.Now().UTC()
	reservation, err := CreateReservation("RSV-CAR-1", models.VehicleCar, "", "", now.Add(time.Hour), now.Add(2*time.Hour), false, false)
	require.NoError(t, err)
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Update("reserved_from", now.Add(-time.Minute)).Error)

	ticket, err := CheckIn("RSV-CAR-1", models.VehicleCar, "GATE-2", false, false, reservation.ReservationNumber)
	require.NoError(t, err)

	// 停了 105 分鐘且 reserved_until 已過 30 分鐘：40 + 1 小時逾時費 20
	backdateEntry(t, ticket.TicketNumber, 105)
	require.NoError(t, database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ?", reservation.ReservationID).
		Update("reserved_until", now.Add(-30*time.Minute)).Error)

	result, err := CheckOut(ticket.TicketNumber, "credit_card", models.PaymentSuccess)
	require.NoError(t, err)
	assert.Equal(t, 60.00, result.Fee)
}

func TestReconcileOrphanedSlots(t *testing.T) {
	setupTestDB(t)
	// occupied 卻沒有 active 票券
	orphanOccupied := seedSlot(t, "O-01", models.VehicleCar)
	require.NoError(t, database.DB.Model(&models.ParkingSlot{}).
		Where("slot_id = ?", orphanOccupied.SlotID).
		Update("status", models.SlotOccupied).Error)

	// reserved 卻沒有任何 pending/confirmed 預約
	orphanReserved := seedSlot(t, "O-02", models.VehicleCar)
	require.NoError(t, database.DB.Model(&models.ParkingSlot{}).
		Where("slot_id = ?", orphanReserved.SlotID).
		Update("status", models.SlotReserved).Error)

	// 正常的 occupied 車位不能被誤放
	seedCarRule(t)
	legitSlot := seedSlot(t, "O-03", models.VehicleCar, withDistance(99))
	ticket, err := CheckIn("LEGIT-01", models.VehicleCar, "GATE-1", false, false, "")
	require.NoError(t, err)
	require.Equal(t, legitSlot.SlotID, ticket.SlotID)

	released, err := ReconcileOrphanedSlots()
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	assert.Equal(t, models.SlotAvailable, reloadSlot(t, orphanOccupied.SlotID).Status)
	assert.Equal(t, models.SlotAvailable, reloadSlot(t, orphanReserved.SlotID).Status)
	assert.Equal(t, models.SlotOccupied, reloadSlot(t, legitSlot.SlotID).Status)

	// 重跑是冪等的
	released, err = ReconcileOrphanedSlots()
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}
