package services

import (
	"errors"
	"fmt"
	"log"
	"parkinglot/database"
	"parkinglot/models"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// CreateSlot 新增車位（場地建置用）
func CreateSlot(slot *models.ParkingSlot) error {
	if !models.ValidVehicleType(slot.VehicleType) {
		return fmt.Errorf("invalid vehicle_type: %s", slot.VehicleType)
	}
	slot.Status = models.SlotAvailable
	slot.PendingStatus = ""
	slot.Version = 0

	if err := database.DB.Create(slot).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("slot_code %s already exists", slot.SlotCode)
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	log.Printf("Created slot %s (id=%d, floor=%d, type=%s)", slot.SlotCode, slot.SlotID, slot.Floor, slot.VehicleType)
	return nil
}

// GetSlots 查詢車位，可選擇以狀態或樓層過濾
func GetSlots(status string, floor *int) ([]models.ParkingSlot, error) {
	query := database.DB.Order("floor ASC, slot_code ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if floor != nil {
		query = query.Where("floor = ?", *floor)
	}
	var slots []models.ParkingSlot
	if err := query.Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	return slots, nil
}

// BlockSlot 封鎖車位。available/blocked 直接轉（後者冪等），
// occupied 只掛 pending 旗標，於 release 時生效，絕不中途驅離。
// reserved/maintenance 狀態不允許封鎖
func BlockSlot(slotID int, reason string) error {
	var slot models.ParkingSlot
	if err := database.DB.First(&slot, slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("slot %d not found", slotID)
		}
		return fmt.Errorf("failed to load slot %d: %w", slotID, err)
	}

	switch slot.Status {
	case models.SlotBlocked:
		return nil
	case models.SlotAvailable:
		ok, err := casSlotStatus(database.DB, &slot, models.SlotBlocked, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("slot %d changed concurrently, block aborted", slotID)
		}
		log.Printf("Blocked slot %d (reason: %s)", slotID, reason)
		return nil
	case models.SlotOccupied:
		result := database.DB.Model(&models.ParkingSlot{}).
			Where("slot_id = ? AND version = ?", slot.SlotID, slot.Version).
			Update("pending_status", models.SlotBlocked)
		if result.Error != nil {
			return fmt.Errorf("failed to set pending block on slot %d: %w", slotID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("slot %d changed concurrently, block aborted", slotID)
		}
		log.Printf("Slot %d is occupied, block pending until release (reason: %s)", slotID, reason)
		return nil
	default:
		return fmt.Errorf("%w: cannot block slot %d while %s", ErrInvalidTransition, slotID, slot.Status)
	}
}

// UnblockSlot 解除封鎖：blocked 轉回 available，占用中的 pending 旗標直接清除
func UnblockSlot(slotID int) error {
	var slot models.ParkingSlot
	if err := database.DB.First(&slot, slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("slot %d not found", slotID)
		}
		return fmt.Errorf("failed to load slot %d: %w", slotID, err)
	}

	if slot.Status == models.SlotBlocked {
		ok, err := casSlotStatus(database.DB, &slot, models.SlotAvailable, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("slot %d changed concurrently, unblock aborted", slotID)
		}
		log.Printf("Unblocked slot %d", slotID)
		return nil
	}

	if slot.PendingStatus == models.SlotBlocked {
		if err := database.DB.Model(&models.ParkingSlot{}).
			Where("slot_id = ?", slot.SlotID).
			Update("pending_status", "").Error; err != nil {
			return fmt.Errorf("failed to clear pending block on slot %d: %w", slotID, err)
		}
		log.Printf("Cleared pending block on slot %d", slotID)
		return nil
	}

	return fmt.Errorf("slot %d is not blocked", slotID)
}

// CreateMaintenanceAlert 開立維修警報。available 車位立即轉 maintenance，
// occupied 車位掛 pending 旗標於 release 時生效
func CreateMaintenanceAlert(alert *models.MaintenanceAlert) error {
	var slot models.ParkingSlot
	if err := database.DB.First(&slot, alert.SlotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("slot %d not found", alert.SlotID)
		}
		return fmt.Errorf("failed to load slot %d: %w", alert.SlotID, err)
	}

	if alert.Severity == "" {
		alert.Severity = "low"
	}
	alert.Status = models.AlertOpen
	alert.CreatedAt = time.Now().UTC()

	tx := database.DB.Begin()
	if err := tx.Create(alert).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create maintenance alert: %w", err)
	}

	switch slot.Status {
	case models.SlotAvailable:
		ok, err := casSlotStatus(tx, &slot, models.SlotMaintenance, nil)
		if err != nil {
			tx.Rollback()
			return err
		}
		if !ok {
			tx.Rollback()
			return fmt.Errorf("slot %d changed concurrently, alert aborted", alert.SlotID)
		}
	case models.SlotOccupied:
		if err := tx.Model(&models.ParkingSlot{}).
			Where("slot_id = ?", slot.SlotID).
			Update("pending_status", models.SlotMaintenance).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set pending maintenance on slot %d: %w", alert.SlotID, err)
		}
	case models.SlotMaintenance:
		// 同一車位可以疊加多個警報
	default:
		tx.Rollback()
		return fmt.Errorf("%w: cannot open maintenance on slot %d while %s", ErrInvalidTransition, alert.SlotID, slot.Status)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit maintenance alert: %w", err)
	}
	log.Printf("Opened maintenance alert %d on slot %d (%s, severity=%s)", alert.AlertID, alert.SlotID, alert.AlertType, alert.Severity)
	return nil
}

// ResolveMaintenanceAlert 關閉警報。該車位沒有其他 open 警報時回到 available，
// 但若占用期間掛了 pending block，則改為 blocked
func ResolveMaintenanceAlert(alertID int) error {
	var alert models.MaintenanceAlert
	if err := database.DB.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("maintenance alert %d not found", alertID)
		}
		return fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	if alert.Status == models.AlertResolved {
		return nil
	}

	now := time.Now().UTC()
	if err := database.DB.Model(&alert).Updates(map[string]interface{}{
		"status":      models.AlertResolved,
		"resolved_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to resolve alert %d: %w", alertID, err)
	}

	// 還有其他 open 警報時車位維持 maintenance
	var openCount int64
	if err := database.DB.Model(&models.MaintenanceAlert{}).
		Where("slot_id = ? AND status = ?", alert.SlotID, models.AlertOpen).
		Count(&openCount).Error; err != nil {
		return fmt.Errorf("failed to count open alerts for slot %d: %w", alert.SlotID, err)
	}
	if openCount > 0 {
		log.Printf("Resolved alert %d, slot %d still has %d open alert(s)", alertID, alert.SlotID, openCount)
		return nil
	}

	var slot models.ParkingSlot
	if err := database.DB.First(&slot, alert.SlotID).Error; err != nil {
		return fmt.Errorf("failed to load slot %d: %w", alert.SlotID, err)
	}

	if slot.Status == models.SlotMaintenance {
		target := models.SlotAvailable
		if slot.PendingStatus == models.SlotBlocked {
			target = models.SlotBlocked
		}
		ok, err := casSlotStatus(database.DB, &slot, target, map[string]interface{}{"pending_status": ""})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("slot %d changed concurrently, resolve aborted", alert.SlotID)
		}
		log.Printf("Resolved alert %d, slot %d returned to %s", alertID, alert.SlotID, target)
		return nil
	}

	// 車位還在占用中，pending maintenance 旗標清掉即可
	if slot.PendingStatus == models.SlotMaintenance {
		if err := database.DB.Model(&models.ParkingSlot{}).
			Where("slot_id = ?", slot.SlotID).
			Update("pending_status", "").Error; err != nil {
			return fmt.Errorf("failed to clear pending maintenance on slot %d: %w", alert.SlotID, err)
		}
	}
	log.Printf("Resolved alert %d on slot %d", alertID, alert.SlotID)
	return nil
}

// GetMaintenanceAlerts 查詢警報，可用狀態過濾
func GetMaintenanceAlerts(status string) ([]models.MaintenanceAlert, error) {
	query := database.DB.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var alerts []models.MaintenanceAlert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to query maintenance alerts: %w", err)
	}
	return alerts, nil
}

// CreatePricingRule 新增計費規則。規則表是 append-only：調價一律插入新列，
// 既有列不修改，歷史費用計算才能重現
func CreatePricingRule(rule *models.PricingRule) error {
	if !models.ValidVehicleType(rule.VehicleType) {
		return fmt.Errorf("invalid vehicle_type: %s", rule.VehicleType)
	}
	if rule.HourlyRate <= 0 || rule.DailyRate <= 0 {
		return fmt.Errorf("hourly_rate and daily_rate must be positive")
	}
	if rule.VIPDiscountPercent < 0 || rule.VIPDiscountPercent > 100 {
		return fmt.Errorf("vip_discount_percent must be between 0 and 100")
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = time.Now().UTC()
	}
	rule.IsActive = true
	rule.CreatedAt = time.Now().UTC()

	if err := database.DB.Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}
	log.Printf("Created pricing rule %d for %s effective from %s", rule.RuleID, rule.VehicleType, rule.EffectiveFrom.Format(time.RFC3339))
	return nil
}

// GetPricingRules 查詢某車型的所有規則（新到舊）
func GetPricingRules(vehicleType string) ([]models.PricingRule, error) {
	query := database.DB.Order("effective_from DESC")
	if vehicleType != "" {
		query = query.Where("vehicle_type = ?", vehicleType)
	}
	var rules []models.PricingRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to query pricing rules: %w", err)
	}
	return rules, nil
}

// DashboardSummary 營運看板彙總
type DashboardSummary struct {
	SlotsByStatus        map[string]int64 `json:"slots_by_status"`
	ActiveTickets        int64            `json:"active_tickets"`
	ConfirmedReservation int64            `json:"confirmed_reservations"`
	OpenAlerts           int64            `json:"open_alerts"`
	SettledRevenue       float64          `json:"settled_revenue"`
}

// GetDashboardSummary 讀側彙總：各狀態車位數、進行中票券、已確認預約、
// 未解決警報與已入帳營收
func GetDashboardSummary() (*DashboardSummary, error) {
	summary := &DashboardSummary{SlotsByStatus: make(map[string]int64)}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := database.DB.Model(&models.ParkingSlot{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count slots by status: %w", err)
	}
	for _, c := range counts {
		summary.SlotsByStatus[c.Status] = c.Count
	}

	if err := database.DB.Model(&models.Ticket{}).
		Where("status = ?", models.TicketActive).
		Count(&summary.ActiveTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to count active tickets: %w", err)
	}

	if err := database.DB.Model(&models.Reservation{}).
		Where("status = ?", models.ReservationConfirmed).
		Count(&summary.ConfirmedReservation).Error; err != nil {
		return nil, fmt.Errorf("failed to count confirmed reservations: %w", err)
	}

	if err := database.DB.Model(&models.MaintenanceAlert{}).
		Where("status = ?", models.AlertOpen).
		Count(&summary.OpenAlerts).Error; err != nil {
		return nil, fmt.Errorf("failed to count open alerts: %w", err)
	}

	if err := database.DB.Model(&models.Ticket{}).
		Where("status = ? AND payment_status = ?", models.TicketCompleted, models.PaymentSuccess).
		Select("COALESCE(SUM(fee), 0)").
		Scan(&summary.SettledRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum settled revenue: %w", err)
	}

	return summary, nil
}
