package models

// 車位狀態
const (
	SlotAvailable   = "available"
	SlotOccupied    = "occupied"
	SlotReserved    = "reserved"
	SlotBlocked     = "blocked"
	SlotMaintenance = "maintenance"
)

// 車輛類型
const (
	VehicleTwoWheeler = "two_wheeler"
	VehicleCar        = "car"
	VehicleTruck      = "truck"
)

// ParkingSlot 車位表：version 欄位用於樂觀鎖，所有狀態變更都必須帶版本條件更新
type ParkingSlot struct {
	SlotID         int    `json:"slot_id" gorm:"primaryKey;autoIncrement;type:INT"`
	SlotCode       string `json:"slot_code" gorm:"type:varchar(20);not null;uniqueIndex" binding:"required,max=20"`
	Floor          int    `json:"floor" gorm:"type:INT;not null" binding:"gte=-5,lte=50"`
	RowIndex       int    `json:"row_index" gorm:"type:INT;not null;default:0" binding:"gte=0"`
	ColIndex       int    `json:"col_index" gorm:"type:INT;not null;default:0" binding:"gte=0"`
	DistanceToGate int    `json:"distance_to_gate" gorm:"type:INT;not null;default:0" binding:"gte=0"`
	VehicleType    string `json:"vehicle_type" gorm:"type:enum('two_wheeler', 'car', 'truck');not null" binding:"required,oneof=two_wheeler car truck"`
	Status         string `json:"status" gorm:"type:enum('available', 'occupied', 'reserved', 'blocked', 'maintenance');not null;default:'available'"`
	// PendingStatus 記錄車位被占用期間管理員要求的目標狀態，於 release 時套用
	PendingStatus string   `json:"pending_status" gorm:"type:varchar(20);default:''"`
	EVCapable     bool     `json:"ev_capable" gorm:"type:tinyint(1);default:0"`
	// 明確指定 column：gorm 預設命名會把 VIP 拆成 v_ip，跟原生 SQL 條件對不上
	VIP           bool     `json:"vip" gorm:"column:vip;type:tinyint(1);default:0"`
	Version       int      `json:"version" gorm:"type:INT;not null;default:0"`
	Tickets       []Ticket `json:"-" gorm:"foreignKey:SlotID;references:SlotID"`
}

// TableName 指定表名稱為 parking_slot
func (ParkingSlot) TableName() string {
	return "parking_slot"
}

// slotTransitions 車位狀態機：只允許表中列出的轉移
var slotTransitions = map[string][]string{
	SlotAvailable:   {SlotOccupied, SlotReserved, SlotBlocked, SlotMaintenance},
	SlotOccupied:    {SlotAvailable, SlotBlocked, SlotMaintenance},
	SlotReserved:    {SlotAvailable, SlotOccupied},
	SlotBlocked:     {SlotAvailable},
	SlotMaintenance: {SlotAvailable, SlotBlocked},
}

// CanTransition 檢查車位狀態轉移是否合法
func (s *ParkingSlot) CanTransition(to string) bool {
	for _, allowed := range slotTransitions[s.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidVehicleType 檢查車輛類型是否有效
func ValidVehicleType(vehicleType string) bool {
	return vehicleType == VehicleTwoWheeler || vehicleType == VehicleCar || vehicleType == VehicleTruck
}

type ParkingSlotResponse struct {
	SlotID         int    `json:"slot_id"`
	SlotCode       string `json:"slot_code"`
	Floor          int    `json:"floor"`
	RowIndex       int    `json:"row_index"`
	ColIndex       int    `json:"col_index"`
	DistanceToGate int    `json:"distance_to_gate"`
	VehicleType    string `json:"vehicle_type"`
	Status         string `json:"status"`
	PendingStatus  string `json:"pending_status,omitempty"`
	EVCapable      bool   `json:"ev_capable"`
	VIP            bool   `json:"vip"`
	Version        int    `json:"version"`
}

func (s *ParkingSlot) ToResponse() ParkingSlotResponse {
	return ParkingSlotResponse{
		SlotID:         s.SlotID,
		SlotCode:       s.SlotCode,
		Floor:          s.Floor,
		RowIndex:       s.RowIndex,
		ColIndex:       s.ColIndex,
		DistanceToGate: s.DistanceToGate,
		VehicleType:    s.VehicleType,
		Status:         s.Status,
		PendingStatus:  s.PendingStatus,
		EVCapable:      s.EVCapable,
		VIP:            s.VIP,
		Version:        s.Version,
	}
}
