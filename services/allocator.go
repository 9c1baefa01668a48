package services

import (
	"fmt"
	"log"
	"math/rand"
	"parkinglot/database"
	"parkinglot/models"
	"time"

	"gorm.io/gorm"
)

// CAS 衝突時的重試上限與退避
const (
	maxClaimRetries   = 3
	maxReleaseRetries = 3
	candidateLimit    = 5
)

// ClaimConstraints 分配車位時的附加條件
type ClaimConstraints struct {
	EVRequired     bool
	VIPRequired    bool
	PreferredFloor *int // nil 表示不指定樓層
}

// findCandidateSlots 依條件搜尋候選車位，排序固定：距離閘門最近優先，
// 再依樓層、座標和、ID，確保相同狀態下重複執行得到相同結果
func findCandidateSlots(db *gorm.DB, vehicleType string, constraints ClaimConstraints, floor *int) ([]models.ParkingSlot, error) {
	var slots []models.ParkingSlot
	query := db.
		Where("status = ?", models.SlotAvailable).
		Where("vehicle_type = ?", vehicleType)

	if constraints.EVRequired {
		query = query.Where("ev_capable = ?", true)
	}
	if constraints.VIPRequired {
		query = query.Where("vip = ?", true)
	}
	if floor != nil {
		query = query.Where("floor = ?", *floor)
	}

	if err := query.
		Order("distance_to_gate ASC, floor ASC, row_index + col_index ASC, slot_id ASC").
		Limit(candidateLimit).
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to query candidate slots: %w", err)
	}
	return slots, nil
}

// casSlotStatus 版本條件更新：只有在版本自讀取後未變時才寫入新狀態。
// 回傳 false 表示有其他操作搶先改寫了該車位
func casSlotStatus(db *gorm.DB, slot *models.ParkingSlot, newStatus string, extra map[string]interface{}) (bool, error) {
	if !slot.CanTransition(newStatus) {
		return false, fmt.Errorf("%w: slot %d cannot go from %s to %s", ErrInvalidTransition, slot.SlotID, slot.Status, newStatus)
	}

	updates := map[string]interface{}{
		"status":  newStatus,
		"version": slot.Version + 1,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := db.Model(&models.ParkingSlot{}).
		Where("slot_id = ? AND version = ?", slot.SlotID, slot.Version).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update slot %d: %w", slot.SlotID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// claimBackoff CAS 落敗後的抖動退避，避免尖峰時段重試互相踩踏
func claimBackoff() {
	time.Sleep(time.Duration(10+rand.Intn(40)) * time.Millisecond)
}

// ClaimSlot 搜尋並原子認領一個可用車位。指定樓層時先在該樓層找，
// 找不到再退回全場搜尋。CAS 落敗代表別的進場搶先，重新搜尋新候選，
// 絕不沿用過期的讀取結果
func ClaimSlot(vehicleType string, constraints ClaimConstraints) (*models.ParkingSlot, error) {
	if !models.ValidVehicleType(vehicleType) {
		return nil, fmt.Errorf("invalid vehicle_type: %s", vehicleType)
	}

	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		candidates, err := findCandidateSlots(database.DB, vehicleType, constraints, constraints.PreferredFloor)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 && constraints.PreferredFloor != nil {
			// 指定樓層沒位子，放寬到全場
			candidates, err = findCandidateSlots(database.DB, vehicleType, constraints, nil)
			if err != nil {
				return nil, err
			}
		}
		if len(candidates) == 0 {
			log.Printf("No available slot for vehicle_type=%s (ev=%v, vip=%v)", vehicleType, constraints.EVRequired, constraints.VIPRequired)
			return nil, ErrSlotUnavailable
		}

		for i := range candidates {
			slot := &candidates[i]
			ok, err := casSlotStatus(database.DB, slot, models.SlotOccupied, nil)
			if err != nil {
				return nil, err
			}
			if ok {
				slot.Status = models.SlotOccupied
				slot.Version++
				log.Printf("Claimed slot %s (id=%d) for vehicle_type=%s", slot.SlotCode, slot.SlotID, vehicleType)
				return slot, nil
			}
			log.Printf("CAS conflict claiming slot %d (version %d), trying next candidate", slot.SlotID, slot.Version)
		}

		if attempt < maxClaimRetries-1 {
			claimBackoff()
		}
	}

	log.Printf("Exhausted claim retries for vehicle_type=%s", vehicleType)
	return nil, ErrSlotUnavailable
}

// releaseSlotWithin 在指定的 db/tx 內歸還車位。歸還不是刪除，而是交還給車位池：
//   - 車位已是 available：冪等，直接視為成功
//   - 占用期間管理員掛了 pending block/maintenance：歸還時套用該狀態而非 available
//   - 版本衝突時重讀重試，有界次數
func releaseSlotWithin(db *gorm.DB, slotID int) error {
	for attempt := 0; attempt < maxReleaseRetries; attempt++ {
		var slot models.ParkingSlot
		if err := db.First(&slot, slotID).Error; err != nil {
			return fmt.Errorf("failed to load slot %d for release: %w", slotID, err)
		}

		if slot.Status == models.SlotAvailable {
			return nil
		}
		// 管理員已強制把車位轉為終態，歸還無事可做
		if slot.Status == models.SlotBlocked || slot.Status == models.SlotMaintenance {
			log.Printf("Slot %d already forced to %s, release is a no-op", slotID, slot.Status)
			return nil
		}

		target := models.SlotAvailable
		if slot.PendingStatus == models.SlotBlocked || slot.PendingStatus == models.SlotMaintenance {
			target = slot.PendingStatus
		}

		ok, err := casSlotStatus(db, &slot, target, map[string]interface{}{"pending_status": ""})
		if err != nil {
			return err
		}
		if ok {
			log.Printf("Released slot %d to %s", slotID, target)
			return nil
		}
		log.Printf("CAS conflict releasing slot %d, retrying", slotID)
	}
	return fmt.Errorf("failed to release slot %d after %d attempts", slotID, maxReleaseRetries)
}

// ReleaseSlot 歸還車位（非交易情境）
func ReleaseSlot(slotID int) error {
	return releaseSlotWithin(database.DB, slotID)
}

// releaseIfReserved 只在車位仍是 reserved 時歸還。occupied 表示進場
// 已經搶贏了車位的版本 CAS，清掃與取消不得把它放回 available
func releaseIfReserved(db *gorm.DB, slotID int) error {
	for attempt := 0; attempt < maxReleaseRetries; attempt++ {
		var slot models.ParkingSlot
		if err := db.First(&slot, slotID).Error; err != nil {
			return fmt.Errorf("failed to load slot %d for release: %w", slotID, err)
		}

		if slot.Status != models.SlotReserved {
			log.Printf("Slot %d is %s, reserved-only release is a no-op", slotID, slot.Status)
			return nil
		}

		ok, err := casSlotStatus(db, &slot, models.SlotAvailable, map[string]interface{}{"pending_status": ""})
		if err != nil {
			return err
		}
		if ok {
			log.Printf("Released reserved slot %d to %s", slotID, models.SlotAvailable)
			return nil
		}
		log.Printf("CAS conflict releasing reserved slot %d, retrying", slotID)
	}
	return fmt.Errorf("failed to release slot %d after %d attempts", slotID, maxReleaseRetries)
}

// ForceSlotStatus 管理員強制改寫車位狀態，仍受狀態機與版本保護
func ForceSlotStatus(slotID int, newStatus string, reason string) error {
	var slot models.ParkingSlot
	if err := database.DB.First(&slot, slotID).Error; err != nil {
		return fmt.Errorf("failed to load slot %d: %w", slotID, err)
	}

	ok, err := casSlotStatus(database.DB, &slot, newStatus, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("slot %d changed concurrently, force status aborted", slotID)
	}
	log.Printf("Forced slot %d to %s (reason: %s)", slotID, newStatus, reason)
	return nil
}
