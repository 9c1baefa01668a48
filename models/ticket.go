package models

import "time"

// 票券狀態
const (
	TicketActive    = "active"
	TicketCompleted = "completed"
	TicketCancelled = "cancelled"
)

// 付款狀態
const (
	PaymentPending  = "pending"
	PaymentSuccess  = "success"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

type Ticket struct {
	TicketID        int         `json:"ticket_id" gorm:"primaryKey;autoIncrement;type:INT"`
	TicketNumber    string      `json:"ticket_number" gorm:"type:varchar(40);not null;uniqueIndex"`
	LicensePlate    string      `json:"license_plate" gorm:"type:varchar(20);not null;index"`
	VehicleType     string      `json:"vehicle_type" gorm:"type:enum('two_wheeler', 'car', 'truck');not null"`
	SlotID          int         `json:"slot_id" gorm:"index;not null;type:INT"`
	GateID          string      `json:"gate_id" gorm:"type:varchar(20);not null"`
	EntryTime       time.Time   `json:"entry_time" gorm:"type:datetime;not null"`
	ExitTime        *time.Time  `json:"exit_time" gorm:"type:datetime;default:null"` // 僅於 completed 時設定
	DurationMinutes int         `json:"duration_minutes" gorm:"type:INT;default:0"`
	Fee             float64     `json:"fee" gorm:"type:decimal(10,2);default:0.0"`
	PaymentMethod   string      `json:"payment_method" gorm:"type:varchar(20)"`
	PaymentStatus   string      `json:"payment_status" gorm:"type:enum('pending', 'success', 'failed', 'refunded');not null;default:'pending'"`
	Status          string      `json:"status" gorm:"type:enum('active', 'completed', 'cancelled');not null;default:'active'"`
	EVUsed          bool        `json:"ev_used" gorm:"type:tinyint(1);default:0"`
	VIP             bool        `json:"vip" gorm:"column:vip;type:tinyint(1);default:0"`
	ReservationID   *int        `json:"reservation_id" gorm:"type:INT;default:null"`
	Slot            ParkingSlot `json:"-" gorm:"foreignKey:SlotID;references:SlotID"`
}

// TableName 指定表名稱為 ticket
func (Ticket) TableName() string {
	return "ticket"
}

// ticketTransitions 票券狀態機：active 只能走向 completed 或 cancelled，兩者皆為終態
var ticketTransitions = map[string][]string{
	TicketActive:    {TicketCompleted, TicketCancelled},
	TicketCompleted: {},
	TicketCancelled: {},
}

// CanTransition 檢查票券狀態轉移是否合法
func (t *Ticket) CanTransition(to string) bool {
	for _, allowed := range ticketTransitions[t.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidPaymentStatus 檢查付款狀態是否為外部結算允許回報的值
func ValidPaymentStatus(status string) bool {
	switch status {
	case PaymentPending, PaymentSuccess, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type TicketResponse struct {
	TicketID        int        `json:"ticket_id"`
	TicketNumber    string     `json:"ticket_number"`
	LicensePlate    string     `json:"license_plate"`
	VehicleType     string     `json:"vehicle_type"`
	SlotID          int        `json:"slot_id"`
	SlotCode        string     `json:"slot_code,omitempty"`
	GateID          string     `json:"gate_id"`
	EntryTime       time.Time  `json:"entry_time"`
	ExitTime        *time.Time `json:"exit_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Fee             float64    `json:"fee"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentStatus   string     `json:"payment_status"`
	Status          string     `json:"status"`
	EVUsed          bool       `json:"ev_used"`
	VIP             bool       `json:"vip"`
}

func (t *Ticket) ToResponse() TicketResponse {
	return TicketResponse{
		TicketID:        t.TicketID,
		TicketNumber:    t.TicketNumber,
		LicensePlate:    t.LicensePlate,
		VehicleType:     t.VehicleType,
		SlotID:          t.SlotID,
		SlotCode:        t.Slot.SlotCode,
		GateID:          t.GateID,
		EntryTime:       t.EntryTime,
		ExitTime:        t.ExitTime,
		DurationMinutes: t.DurationMinutes,
		Fee:             t.Fee,
		PaymentMethod:   t.PaymentMethod,
		PaymentStatus:   t.PaymentStatus,
		Status:          t.Status,
		EVUsed:          t.EVUsed,
		VIP:             t.VIP,
	}
}
