package models

import "time"

// 維修警報狀態
const (
	AlertOpen     = "open"
	AlertResolved = "resolved"
)

// MaintenanceAlert 維修警報：open 狀態期間車位不可被分配
type MaintenanceAlert struct {
	AlertID     int         `json:"alert_id" gorm:"primaryKey;autoIncrement;type:INT"`
	SlotID      int         `json:"slot_id" gorm:"index;not null;type:INT" binding:"required,gt=0"`
	AlertType   string      `json:"alert_type" gorm:"type:varchar(50);not null" binding:"required,max=50"`
	Description string      `json:"description" gorm:"type:varchar(255)" binding:"omitempty,max=255"`
	Severity    string      `json:"severity" gorm:"type:enum('low', 'medium', 'high');not null;default:'low'" binding:"omitempty,oneof=low medium high"`
	Status      string      `json:"status" gorm:"type:enum('open', 'resolved');not null;default:'open'"`
	CreatedAt   time.Time   `json:"created_at" gorm:"type:datetime"`
	ResolvedAt  *time.Time  `json:"resolved_at" gorm:"type:datetime;default:null"`
	Slot        ParkingSlot `json:"-" gorm:"foreignKey:SlotID;references:SlotID"`
}

// TableName 指定表名稱為 maintenance_alert
func (MaintenanceAlert) TableName() string {
	return "maintenance_alert"
}

type MaintenanceAlertResponse struct {
	AlertID     int        `json:"alert_id"`
	SlotID      int        `json:"slot_id"`
	AlertType   string     `json:"alert_type"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

func (a *MaintenanceAlert) ToResponse() MaintenanceAlertResponse {
	return MaintenanceAlertResponse{
		AlertID:     a.AlertID,
		SlotID:      a.SlotID,
		AlertType:   a.AlertType,
		Description: a.Description,
		Severity:    a.Severity,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
		ResolvedAt:  a.ResolvedAt,
	}
}
