package services

import (
	"fmt"
	"log"
	"parkinglot/database"
	"parkinglot/models"
)

// ReconcileOrphanedSlots 復原清掃：找出 occupied 但沒有任何 active 票券的車位
// （例如票券完結與車位歸還之間當機），以及 reserved 但沒有任何
// pending/confirmed 預約的車位，交還車位池。與過期清掃同一個冪等模式，
// 開機時跑一次、之後定期跑
func ReconcileOrphanedSlots() (int, error) {
	released := 0

	var orphanedOccupied []models.ParkingSlot
	if err := database.DB.
		Where("status = ?", models.SlotOccupied).
		Where("slot_id NOT IN (?)", database.DB.Model(&models.Ticket{}).
			Select("slot_id").
			Where("status = ?", models.TicketActive)).
		Find(&orphanedOccupied).Error; err != nil {
		return 0, fmt.Errorf("failed to query orphaned occupied slots: %w", err)
	}
	for _, slot := range orphanedOccupied {
		log.Printf("Slot %d is occupied with no active ticket, handing back", slot.SlotID)
		if err := ReleaseSlot(slot.SlotID); err != nil {
			log.Printf("Failed to reconcile slot %d: %v", slot.SlotID, err)
			continue
		}
		released++
	}

	var orphanedReserved []models.ParkingSlot
	if err := database.DB.
		Where("status = ?", models.SlotReserved).
		Where("slot_id NOT IN (?)", database.DB.Model(&models.Reservation{}).
			Select("slot_id").
			Where("slot_id IS NOT NULL").
			Where("status IN (?, ?)", models.ReservationPending, models.ReservationConfirmed)).
		Find(&orphanedReserved).Error; err != nil {
		return released, fmt.Errorf("failed to query orphaned reserved slots: %w", err)
	}
	for _, slot := range orphanedReserved {
		log.Printf("Slot %d is reserved with no live reservation, handing back", slot.SlotID)
		if err := ReleaseSlot(slot.SlotID); err != nil {
			log.Printf("Failed to reconcile slot %d: %v", slot.SlotID, err)
			continue
		}
		released++
	}

	if released > 0 {
		log.Printf("Reconciliation released %d orphaned slot(s)", released)
	}
	return released, nil
}
