package models

import "time"

// 預約狀態
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationExpired   = "expired"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

type Reservation struct {
	ReservationID     int       `json:"reservation_id" gorm:"primaryKey;autoIncrement;type:INT"`
	ReservationNumber string    `json:"reservation_number" gorm:"type:varchar(40);not null;uniqueIndex"`
	LicensePlate      string    `json:"license_plate" gorm:"type:varchar(20);not null;index"`
	VehicleType       string    `json:"vehicle_type" gorm:"type:enum('two_wheeler', 'car', 'truck');not null"`
	ContactName       string    `json:"contact_name" gorm:"type:varchar(50)"`
	ContactPhone      string    `json:"contact_phone" gorm:"type:varchar(200)"` // AES 加密後儲存
	ReservedFrom      time.Time `json:"reserved_from" gorm:"type:datetime;not null"`
	ReservedUntil     time.Time `json:"reserved_until" gorm:"type:datetime;not null"`
	Status            string    `json:"status" gorm:"type:enum('pending', 'confirmed', 'expired', 'cancelled', 'completed');not null;default:'pending'"`
	SlotID            *int      `json:"slot_id" gorm:"type:INT;default:null;index"`
	EVRequired        bool      `json:"ev_required" gorm:"type:tinyint(1);default:0"`
	VIP               bool      `json:"vip" gorm:"column:vip;type:tinyint(1);default:0"`
	CreatedAt         time.Time `json:"created_at" gorm:"type:datetime"`
}

// TableName 指定表名稱為 reservation
func (Reservation) TableName() string {
	return "reservation"
}

// reservationTransitions 預約狀態機
var reservationTransitions = map[string][]string{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCompleted, ReservationExpired, ReservationCancelled},
	ReservationExpired:   {},
	ReservationCancelled: {},
	ReservationCompleted: {},
}

// CanTransition 檢查預約狀態轉移是否合法
func (r *Reservation) CanTransition(to string) bool {
	for _, allowed := range reservationTransitions[r.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WindowContains 檢查預約時間窗是否包含指定時間
func (r *Reservation) WindowContains(at time.Time) bool {
	return !at.Before(r.ReservedFrom) && !at.After(r.ReservedUntil)
}

type ReservationResponse struct {
	ReservationID     int       `json:"reservation_id"`
	ReservationNumber string    `json:"reservation_number"`
	LicensePlate      string    `json:"license_plate"`
	VehicleType       string    `json:"vehicle_type"`
	ContactName       string    `json:"contact_name"`
	ContactPhone      string    `json:"contact_phone"`
	ReservedFrom      time.Time `json:"reserved_from"`
	ReservedUntil     time.Time `json:"reserved_until"`
	Status            string    `json:"status"`
	SlotID            *int      `json:"slot_id"`
	EVRequired        bool      `json:"ev_required"`
	VIP               bool      `json:"vip"`
}

// ToResponse 轉換為回應結構，contactPhone 由呼叫端先解密
func (r *Reservation) ToResponse(contactPhone string) ReservationResponse {
	return ReservationResponse{
		ReservationID:     r.ReservationID,
		ReservationNumber: r.ReservationNumber,
		LicensePlate:      r.LicensePlate,
		VehicleType:       r.VehicleType,
		ContactName:       r.ContactName,
		ContactPhone:      contactPhone,
		ReservedFrom:      r.ReservedFrom,
		ReservedUntil:     r.ReservedUntil,
		Status:            r.Status,
		SlotID:            r.SlotID,
		EVRequired:        r.EVRequired,
		VIP:               r.VIP,
	}
}
