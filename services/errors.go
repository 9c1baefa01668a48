package services

import "errors"

// 業務錯誤分類：除了 allocator 內部的 CAS 衝突重試之外，
// 這些錯誤一律原樣傳遞給呼叫端，伺服器端不再重試
var (
	// ErrSlotUnavailable 沒有符合條件的可用車位，呼叫端可自行退避重試
	ErrSlotUnavailable = errors.New("no available slot matching the request")
	// ErrReservationInvalid 預約過期、不符或不屬於該車輛，終態錯誤
	ErrReservationInvalid = errors.New("reservation is not valid for check-in")
	// ErrTicketNotActive 重複結帳或票券已取消，終態錯誤
	ErrTicketNotActive = errors.New("ticket is not active")
	// ErrTicketNotFound 查無此票券編號
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrNoAvailabilityForWindow 預約時間窗內沒有可保留的車位
	ErrNoAvailabilityForWindow = errors.New("no slot available for the requested window")
	// ErrNoPricingRule 計費規則缺失屬於設定缺陷，必須讓營運人員看到，絕不默默收 0 元
	ErrNoPricingRule = errors.New("no pricing rule configured for vehicle type")
	// ErrInvalidTransition 狀態機不允許的轉移
	ErrInvalidTransition = errors.New("invalid status transition")
)
