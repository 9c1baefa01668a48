package models

import "time"

// PricingRule 計費規則表：append-only，更新規則時插入新列而非修改舊列，
// 讓歷史費用計算可以重現
type PricingRule struct {
	RuleID             int       `json:"rule_id" gorm:"primaryKey;autoIncrement;type:INT"`
	VehicleType        string    `json:"vehicle_type" gorm:"type:enum('two_wheeler', 'car', 'truck');not null;index" binding:"required,oneof=two_wheeler car truck"`
	BasePrice          float64   `json:"base_price" gorm:"type:decimal(10,2);not null" binding:"gte=0"`
	HourlyRate         float64   `json:"hourly_rate" gorm:"type:decimal(10,2);not null" binding:"gt=0"`
	DailyRate          float64   `json:"daily_rate" gorm:"type:decimal(10,2);not null" binding:"gt=0"`
	PenaltyRate        float64   `json:"penalty_rate" gorm:"type:decimal(10,2);default:0.0" binding:"gte=0"`
	EVChargingRate     float64   `json:"ev_charging_rate" gorm:"type:decimal(10,2);default:0.0" binding:"gte=0"`
	VIPDiscountPercent float64   `json:"vip_discount_percent" gorm:"column:vip_discount_percent;type:decimal(5,2);default:0.0" binding:"gte=0,lte=100"`
	EffectiveFrom      time.Time `json:"effective_from" gorm:"type:datetime;not null;index"`
	IsActive           bool      `json:"is_active" gorm:"type:tinyint(1);default:1"`
	CreatedAt          time.Time `json:"created_at" gorm:"type:datetime"`
}

// TableName 指定表名稱為 pricing_rule
func (PricingRule) TableName() string {
	return "pricing_rule"
}

type PricingRuleResponse struct {
	RuleID             int       `json:"rule_id"`
	VehicleType        string    `json:"vehicle_type"`
	BasePrice          float64   `json:"base_price"`
	HourlyRate         float64   `json:"hourly_rate"`
	DailyRate          float64   `json:"daily_rate"`
	PenaltyRate        float64   `json:"penalty_rate"`
	EVChargingRate     float64   `json:"ev_charging_rate"`
	VIPDiscountPercent float64   `json:"vip_discount_percent"`
	EffectiveFrom      time.Time `json:"effective_from"`
	IsActive           bool      `json:"is_active"`
}

func (p *PricingRule) ToResponse() PricingRuleResponse {
	return PricingRuleResponse{
		RuleID:             p.RuleID,
		VehicleType:        p.VehicleType,
		BasePrice:          p.BasePrice,
		HourlyRate:         p.HourlyRate,
		DailyRate:          p.DailyRate,
		PenaltyRate:        p.PenaltyRate,
		EVChargingRate:     p.EVChargingRate,
		VIPDiscountPercent: p.VIPDiscountPercent,
		EffectiveFrom:      p.EffectiveFrom,
		IsActive:           p.IsActive,
	}
}
