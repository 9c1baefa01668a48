package services

import (
	"errors"
	"fmt"
	"log"
	"parkinglot/database"
	"parkinglot/models"
	"parkinglot/utils"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 預約最多提前 30 天
const maxReservationLeadDays = 30

// CreateReservation 建立預約並軟保留車位：
//  1. 時間窗必須完全在未來，reserved_until 晚於 reserved_from
//  2. 候選車位排除時間窗重疊的既有預約（pending/confirmed）
//  3. CAS available→reserved 保留車位，落敗換下一個候選
//  4. 預約先以 pending 建立、綁定車位後再升級為 confirmed，同一交易完成
func CreateReservation(licensePlate, vehicleType, contactName, contactPhone string, reservedFrom, reservedUntil time.Time, evRequired, vip bool) (*models.Reservation, error) {
	if licensePlate == "" {
		return nil, fmt.Errorf("license_plate is required")
	}
	if !models.ValidVehicleType(vehicleType) {
		return nil, fmt.Errorf("invalid vehicle_type: %s", vehicleType)
	}

	now := time.Now().UTC()
	if !reservedFrom.After(now) {
		return nil, fmt.Errorf("reserved_from must be in the future")
	}
	if !reservedUntil.After(reservedFrom) {
		return nil, fmt.Errorf("reserved_until must be after reserved_from")
	}
	if reservedFrom.After(now.AddDate(0, 0, maxReservationLeadDays)) {
		return nil, fmt.Errorf("reserved_from must be within %d days", maxReservationLeadDays)
	}

	// 時間窗重疊的車位先排除，跟佔用狀態的排除是兩道不同的閘
	var heldSlotIDs []int
	if err := database.DB.Model(&models.Reservation{}).
		Select("slot_id").
		Where("slot_id IS NOT NULL").
		Where("status IN (?, ?)", models.ReservationPending, models.ReservationConfirmed).
		Where("reserved_from < ? AND reserved_until > ?", reservedUntil, reservedFrom).
		Distinct().
		Scan(&heldSlotIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to query overlapping reservations: %w", err)
	}

	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		query := database.DB.
			Where("status = ?", models.SlotAvailable).
			Where("vehicle_type = ?", vehicleType)
		if evRequired {
			query = query.Where("ev_capable = ?", true)
		}
		if vip {
			query = query.Where("vip = ?", true)
		}
		if len(heldSlotIDs) > 0 {
			query = query.Where("slot_id NOT IN (?)", heldSlotIDs)
		}

		var candidates []models.ParkingSlot
		if err := query.
			Order("distance_to_gate ASC, floor ASC, row_index + col_index ASC, slot_id ASC").
			Limit(candidateLimit).
			Find(&candidates).Error; err != nil {
			return nil, fmt.Errorf("failed to query candidate slots for window: %w", err)
		}
		if len(candidates) == 0 {
			log.Printf("No slot can be held for %s between %s and %s", vehicleType, reservedFrom, reservedUntil)
			return nil, ErrNoAvailabilityForWindow
		}

		for i := range candidates {
			slot := &candidates[i]
			ok, err := casSlotStatus(database.DB, slot, models.SlotReserved, nil)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Printf("CAS conflict holding slot %d for reservation, trying next candidate", slot.SlotID)
				continue
			}

			reservation, err := persistReservation(licensePlate, vehicleType, contactName, contactPhone, reservedFrom, reservedUntil, evRequired, vip, slot.SlotID)
			if err != nil {
				// 建檔失敗要放掉剛保留的車位
				slot.Status = models.SlotReserved
				slot.Version++
				if _, relErr := casSlotStatus(database.DB, slot, models.SlotAvailable, nil); relErr != nil {
					log.Printf("Failed to hand back held slot %d: %v", slot.SlotID, relErr)
				}
				return nil, err
			}
			log.Printf("Reserved slot %s (id=%d) for %s: %s", slot.SlotCode, slot.SlotID, licensePlate, reservation.ReservationNumber)
			return reservation, nil
		}

		if attempt < maxClaimRetries-1 {
			claimBackoff()
		}
	}

	return nil, ErrNoAvailabilityForWindow
}

// persistReservation 在單一交易內建立 pending 預約並升級為 confirmed
func persistReservation(licensePlate, vehicleType, contactName, contactPhone string, reservedFrom, reservedUntil time.Time, evRequired, vip bool, slotID int) (*models.Reservation, error) {
	encryptedPhone := ""
	if contactPhone != "" {
		var err error
		encryptedPhone, err = utils.EncryptContactInfo(contactPhone)
		if err != nil {
			log.Printf("Failed to encrypt contact phone: %v", err)
			return nil, fmt.Errorf("failed to encrypt contact phone: %w", err)
		}
	}

	reservation := &models.Reservation{
		ReservationNumber: "RSV-" + uuid.NewString(),
		LicensePlate:      licensePlate,
		VehicleType:       vehicleType,
		ContactName:       contactName,
		ContactPhone:      encryptedPhone,
		ReservedFrom:      reservedFrom,
		ReservedUntil:     reservedUntil,
		Status:            models.ReservationPending,
		SlotID:            &slotID,
		EVRequired:        evRequired,
		VIP:               vip,
		CreatedAt:         time.Now().UTC(),
	}

	tx := database.DB.Begin()
	if err := tx.Create(reservation).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	if err := tx.Model(reservation).Update("status", models.ReservationConfirmed).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	reservation.Status = models.ReservationConfirmed
	return reservation, nil
}

// CancelReservation 取消預約，僅允許 pending/confirmed，保留中的車位交還車位池
func CancelReservation(reservationNumber string) error {
	var reservation models.Reservation
	if err := database.DB.Where("reservation_number = ?", reservationNumber).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reservation %s not found", reservationNumber)
		}
		return fmt.Errorf("failed to load reservation %s: %w", reservationNumber, err)
	}

	if !reservation.CanTransition(models.ReservationCancelled) {
		return fmt.Errorf("%w: reservation %s is %s", ErrReservationInvalid, reservationNumber, reservation.Status)
	}

	// 條件更新擋掉並發的取消/清掃/進場
	result := database.DB.Model(&models.Reservation{}).
		Where("reservation_id = ? AND status IN (?, ?)", reservation.ReservationID, models.ReservationPending, models.ReservationConfirmed).
		Update("status", models.ReservationCancelled)
	if result.Error != nil {
		return fmt.Errorf("failed to cancel reservation %s: %w", reservationNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: reservation %s changed concurrently", ErrReservationInvalid, reservationNumber)
	}

	// 歸還只在車位仍是 reserved 時生效：若並發進場已經搶贏車位 CAS，
	// 車位歸占用方所有，這裡不能動
	if reservation.SlotID != nil {
		if err := releaseIfReserved(database.DB, *reservation.SlotID); err != nil {
			log.Printf("Failed to hand back slot %d after cancelling %s: %v", *reservation.SlotID, reservationNumber, err)
			return err
		}
	}

	log.Printf("Cancelled reservation %s", reservationNumber)
	return nil
}

// SweepExpiredReservations 過期清掃：confirmed 且 reserved_until 已過、
// 無人進場的預約轉為 expired，保留的車位交還。設計成可重入：
//   - 預約列先用條件更新搶狀態，已被清掃過的列影響數為 0，直接跳過
//   - 只歸還仍為 reserved 的車位，其他狀態一律 no-op
//
// 兩個清掃併發執行或與進場賽跑時，由預約列與車位版本的條件更新決定唯一贏家
func SweepExpiredReservations() (int, error) {
	now := time.Now().UTC()

	var expired []models.Reservation
	if err := database.DB.
		Where("status = ? AND reserved_until < ?", models.ReservationConfirmed, now).
		Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("failed to query expired reservations: %w", err)
	}

	swept := 0
	for _, reservation := range expired {
		result := database.DB.Model(&models.Reservation{}).
			Where("reservation_id = ? AND status = ?", reservation.ReservationID, models.ReservationConfirmed).
			Update("status", models.ReservationExpired)
		if result.Error != nil {
			log.Printf("Failed to expire reservation %s: %v", reservation.ReservationNumber, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// 另一個清掃或進場已經處理掉了
			continue
		}

		// 車位仍是 reserved 才歸還；已經被進場的 CAS 搶成 occupied 的
		// 車位歸占用方所有，碰了就會把活票券留在 available 的車位上
		if reservation.SlotID != nil {
			if err := releaseIfReserved(database.DB, *reservation.SlotID); err != nil {
				log.Printf("Failed to hand back slot %d for expired reservation %s: %v", *reservation.SlotID, reservation.ReservationNumber, err)
				continue
			}
		}
		swept++
		log.Printf("Expired reservation %s, slot handed back", reservation.ReservationNumber)
	}

	if swept > 0 {
		log.Printf("Reservation sweep expired %d reservation(s)", swept)
	}
	return swept, nil
}

// GetReservationByNumber 查詢單一預約
func GetReservationByNumber(reservationNumber string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := database.DB.Where("reservation_number = ?", reservationNumber).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reservation %s: %w", reservationNumber, err)
	}
	return &reservation, nil
}

// GetReservationsByPlate 查詢某車牌的所有預約
func GetReservationsByPlate(licensePlate string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	if err := database.DB.
		Where("license_plate = ?", licensePlate).
		Order("reserved_from DESC").
		Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("failed to query reservations for %s: %w", licensePlate, err)
	}
	return reservations, nil
}
