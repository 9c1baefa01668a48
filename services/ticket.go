package services

import (
	"errors"
	"fmt"
	"log"
	"parkinglot/database"
	"parkinglot/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckOutResult 結帳回傳給閘門端的結果
type CheckOutResult struct {
	TicketNumber    string  `json:"ticket_number"`
	Fee             float64 `json:"fee"`
	DurationMinutes int     `json:"duration_minutes"`
	PaymentStatus   string  `json:"payment_status"`
}

// CheckIn 進場開票。帶預約編號時使用預約保留的車位（仍走版本條件更新），
// 否則交給 allocator 搜尋認領。票券建立與車位認領必須一致：
// 開票失敗時認領到的車位要歸還
func CheckIn(licensePlate, vehicleType, gateID string, evRequired, vip bool, reservationNumber string) (*models.Ticket, error) {
	if licensePlate == "" {
		return nil, fmt.Errorf("license_plate is required")
	}
	if !models.ValidVehicleType(vehicleType) {
		return nil, fmt.Errorf("invalid vehicle_type: %s", vehicleType)
	}

	if reservationNumber != "" {
		return checkInWithReservation(licensePlate, vehicleType, gateID, evRequired, vip, reservationNumber)
	}

	slot, err := ClaimSlot(vehicleType, ClaimConstraints{EVRequired: evRequired, VIPRequired: vip})
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		TicketNumber:  "TKT-" + uuid.NewString(),
		LicensePlate:  licensePlate,
		VehicleType:   vehicleType,
		SlotID:        slot.SlotID,
		GateID:        gateID,
		EntryTime:     time.Now().UTC(),
		Status:        models.TicketActive,
		PaymentStatus: models.PaymentPending,
		EVUsed:        evRequired,
		VIP:           vip,
	}

	if err := database.DB.Create(ticket).Error; err != nil {
		log.Printf("Failed to create ticket for slot %d, handing slot back: %v", slot.SlotID, err)
		if relErr := ReleaseSlot(slot.SlotID); relErr != nil {
			log.Printf("Failed to hand back slot %d after ticket failure: %v", slot.SlotID, relErr)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	log.Printf("Checked in %s at gate %s: ticket %s, slot %s", licensePlate, gateID, ticket.TicketNumber, slot.SlotCode)
	ticket.Slot = *slot
	return ticket, nil
}

// checkInWithReservation 憑預約進場：預約必須是 confirmed、時間窗包含現在、
// 車輛相符，且使用預約保留的那一個車位，不另行搜尋。
// 預約車位的 reserved→occupied 一樣走 CAS，與過期清掃賽跑時由版本決定勝負
func checkInWithReservation(licensePlate, vehicleType, gateID string, evRequired, vip bool, reservationNumber string) (*models.Ticket, error) {
	var reservation models.Reservation
	if err := database.DB.Where("reservation_number = ?", reservationNumber).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reservation %s not found", ErrReservationInvalid, reservationNumber)
		}
		return nil, fmt.Errorf("failed to load reservation %s: %w", reservationNumber, err)
	}

	if reservation.Status != models.ReservationConfirmed {
		log.Printf("Reservation %s is %s, cannot check in", reservationNumber, reservation.Status)
		return nil, fmt.Errorf("%w: reservation %s is %s", ErrReservationInvalid, reservationNumber, reservation.Status)
	}
	if reservation.LicensePlate != licensePlate || reservation.VehicleType != vehicleType {
		log.Printf("Reservation %s does not match vehicle %s (%s)", reservationNumber, licensePlate, vehicleType)
		return nil, fmt.Errorf("%w: reservation %s does not match the vehicle", ErrReservationInvalid, reservationNumber)
	}
	now := time.Now().UTC()
	if !reservation.WindowContains(now) {
		log.Printf("Reservation %s window %s–%s does not contain now", reservationNumber, reservation.ReservedFrom, reservation.ReservedUntil)
		return nil, fmt.Errorf("%w: outside the reserved window", ErrReservationInvalid)
	}
	if reservation.SlotID == nil {
		return nil, fmt.Errorf("%w: reservation %s has no assigned slot", ErrReservationInvalid, reservationNumber)
	}

	var slot models.ParkingSlot
	if err := database.DB.First(&slot, *reservation.SlotID).Error; err != nil {
		return nil, fmt.Errorf("failed to load reserved slot %d: %w", *reservation.SlotID, err)
	}
	if slot.Status != models.SlotReserved {
		// 清掃或取消已經搶先釋放了這個車位
		log.Printf("Reserved slot %d is %s, reservation %s lost the race", slot.SlotID, slot.Status, reservationNumber)
		return nil, fmt.Errorf("%w: reserved slot is no longer held", ErrReservationInvalid)
	}

	ok, err := casSlotStatus(database.DB, &slot, models.SlotOccupied, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		// CAS 落敗：過期清掃贏了這場賽跑
		log.Printf("CAS conflict on reserved slot %d, reservation %s lost the race", slot.SlotID, reservationNumber)
		return nil, fmt.Errorf("%w: reserved slot was released concurrently", ErrReservationInvalid)
	}
	slot.Status = models.SlotOccupied
	slot.Version++

	ticket := &models.Ticket{
		TicketNumber:  "TKT-" + uuid.NewString(),
		LicensePlate:  licensePlate,
		VehicleType:   vehicleType,
		SlotID:        slot.SlotID,
		GateID:        gateID,
		EntryTime:     now,
		Status:        models.TicketActive,
		PaymentStatus: models.PaymentPending,
		EVUsed:        evRequired,
		VIP:           vip,
		ReservationID: &reservation.ReservationID,
	}

	tx := database.DB.Begin()
	if err := tx.Create(ticket).Error; err != nil {
		tx.Rollback()
		if relErr := ReleaseSlot(slot.SlotID); relErr != nil {
			log.Printf("Failed to hand back slot %d after ticket failure: %v", slot.SlotID, relErr)
		}
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	result := tx.Model(&models.Reservation{}).
		Where("reservation_id = ? AND status = ?", reservation.ReservationID, models.ReservationConfirmed).
		Update("status", models.ReservationCompleted)
	if result.Error != nil {
		tx.Rollback()
		if relErr := ReleaseSlot(slot.SlotID); relErr != nil {
			log.Printf("Failed to hand back slot %d after reservation update failure: %v", slot.SlotID, relErr)
		}
		return nil, fmt.Errorf("failed to complete reservation %s: %w", reservationNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		// 預約列在讀取後被清掃或取消搶走了，進場作廢並交還剛認領的車位
		tx.Rollback()
		log.Printf("Reservation %s changed concurrently during check-in, undoing slot claim", reservationNumber)
		if relErr := ReleaseSlot(slot.SlotID); relErr != nil {
			log.Printf("Failed to hand back slot %d after losing reservation row: %v", slot.SlotID, relErr)
		}
		return nil, fmt.Errorf("%w: reservation %s changed concurrently", ErrReservationInvalid, reservationNumber)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit reservation check-in: %w", err)
	}

	log.Printf("Checked in %s with reservation %s: ticket %s, slot %s", licensePlate, reservationNumber, ticket.TicketNumber, slot.SlotCode)
	ticket.Slot = slot
	return ticket, nil
}

// CheckOut 結帳離場。票券必須是 active；費用鎖定進場時間的規則計算。
// 票券完結與車位歸還放在同一個交易，中途當機不會留下無主的 occupied 車位
// （即便留下，reconcile 清掃也會復原，見 ReconcileOrphanedSlots）
func CheckOut(ticketNumber, paymentMethod, paymentOutcome string) (*CheckOutResult, error) {
	var ticket models.Ticket
	if err := database.DB.Where("ticket_number = ?", ticketNumber).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketNumber)
		}
		return nil, fmt.Errorf("failed to load ticket %s: %w", ticketNumber, err)
	}

	if ticket.Status != models.TicketActive {
		log.Printf("Ticket %s is %s, checkout rejected", ticketNumber, ticket.Status)
		return nil, fmt.Errorf("%w: ticket %s is %s", ErrTicketNotActive, ticketNumber, ticket.Status)
	}

	// 付款結果由外部結算回報，未回報時維持 pending 等待清算
	if paymentOutcome == "" {
		paymentOutcome = models.PaymentPending
	}
	if !models.ValidPaymentStatus(paymentOutcome) {
		return nil, fmt.Errorf("invalid payment outcome: %s", paymentOutcome)
	}

	now := time.Now().UTC()
	durationMinutes := int(now.Sub(ticket.EntryTime).Minutes())
	if durationMinutes < 0 {
		durationMinutes = 0
	}

	rule, err := CurrentPricingRule(ticket.VehicleType, ticket.EntryTime)
	if err != nil {
		return nil, err
	}

	fee := CalculateParkingFee(rule, durationMinutes, ticket.EVUsed, ticket.VIP)

	// 預約票逾時離場加收逾時費
	if ticket.ReservationID != nil {
		var reservation models.Reservation
		if err := database.DB.First(&reservation, *ticket.ReservationID).Error; err == nil {
			if now.After(reservation.ReservedUntil) {
				overstay := int(now.Sub(reservation.ReservedUntil).Minutes())
				penalty := OverstayCharge(rule, overstay)
				if penalty > 0 {
					log.Printf("Ticket %s overstayed reservation by %d minutes, penalty %.2f", ticketNumber, overstay, penalty)
					fee = RoundToCent(fee + penalty)
				}
			}
		}
	}

	tx := database.DB.Begin()
	// 條件更新擋掉讀取後搶先完結的並發結帳/作廢，終態票券不得重寫
	result := tx.Model(&ticket).
		Where("status = ?", models.TicketActive).
		Updates(map[string]interface{}{
			"status":           models.TicketCompleted,
			"exit_time":        now,
			"duration_minutes": durationMinutes,
			"fee":              fee,
			"payment_method":   paymentMethod,
			"payment_status":   paymentOutcome,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to complete ticket %s: %w", ticketNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ticket %s completed concurrently", ErrTicketNotActive, ticketNumber)
	}
	if err := releaseSlotWithin(tx, ticket.SlotID); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to release slot %d: %w", ticket.SlotID, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	log.Printf("Checked out ticket %s: %d minutes, fee %.2f, payment %s", ticketNumber, durationMinutes, fee, paymentOutcome)
	return &CheckOutResult{
		TicketNumber:    ticketNumber,
		Fee:             fee,
		DurationMinutes: durationMinutes,
		PaymentStatus:   paymentOutcome,
	}, nil
}

// CancelTicket 管理性作廢（例如開錯票）。作廢同樣要歸還車位
func CancelTicket(ticketNumber, reason string) error {
	var ticket models.Ticket
	if err := database.DB.Where("ticket_number = ?", ticketNumber).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketNumber)
		}
		return fmt.Errorf("failed to load ticket %s: %w", ticketNumber, err)
	}

	if !ticket.CanTransition(models.TicketCancelled) {
		return fmt.Errorf("%w: ticket %s is %s", ErrTicketNotActive, ticketNumber, ticket.Status)
	}

	tx := database.DB.Begin()
	result := tx.Model(&ticket).
		Where("status = ?", models.TicketActive).
		Update("status", models.TicketCancelled)
	if result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to cancel ticket %s: %w", ticketNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return fmt.Errorf("%w: ticket %s completed concurrently", ErrTicketNotActive, ticketNumber)
	}
	if err := releaseSlotWithin(tx, ticket.SlotID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to release slot %d: %w", ticket.SlotID, err)
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit ticket cancellation: %w", err)
	}

	log.Printf("Cancelled ticket %s (reason: %s), slot %d handed back", ticketNumber, reason, ticket.SlotID)
	return nil
}

// GetTicketByNumber 查詢單一票券
func GetTicketByNumber(ticketNumber string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := database.DB.Preload("Slot").Where("ticket_number = ?", ticketNumber).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ticket %s: %w", ticketNumber, err)
	}
	return &ticket, nil
}

// GetActiveTickets 查詢所有進行中的票券
func GetActiveTickets() ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := database.DB.Preload("Slot").Where("status = ?", models.TicketActive).Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to query active tickets: %w", err)
	}
	return tickets, nil
}
