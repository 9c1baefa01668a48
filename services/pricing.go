package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"parkinglot/database"
	"parkinglot/models"
	"time"

	"gorm.io/gorm"
)

// CurrentPricingRule 選擇計費規則：同車型、is_active、effective_from 不晚於 at，
// 取 effective_from 最新的一條。at 傳入的是進場時間，收費以進場當下的規則為準，
// 停車期間調價不影響已進場車輛
func CurrentPricingRule(vehicleType string, at time.Time) (*models.PricingRule, error) {
	var rule models.PricingRule
	err := database.DB.
		Where("vehicle_type = ? AND is_active = ? AND effective_from <= ?", vehicleType, true, at).
		Order("effective_from DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("No pricing rule for vehicle_type=%s at %s — configuration defect, operators must be alerted", vehicleType, at.Format(time.RFC3339))
			return nil, fmt.Errorf("%w: %s", ErrNoPricingRule, vehicleType)
		}
		return nil, fmt.Errorf("failed to query pricing rule: %w", err)
	}
	return &rule, nil
}

// BilledHours 任何不足一小時的部分都進位為一整個小時，這是明文收費政策而非誤差。
// 進場即至少收一小時
func BilledHours(durationMinutes int) int {
	hours := int(math.Ceil(float64(durationMinutes) / 60.0))
	if hours < 1 {
		hours = 1
	}
	return hours
}

// CalculateParkingFee 計算停車費：
//
//	fee = base_price + 時間費用，時間費用以 24 小時為一段，
//	每段的小時費超過 daily_rate 時以 daily_rate 封頂，餘數小時照時計費。
//	VIP 折扣只作用在 EV 之前的小計，EV 充電費為固定加項不打折。
//	最後以四捨五入（half-up）進位到分
func CalculateParkingFee(rule *models.PricingRule, durationMinutes int, evUsed, vip bool) float64 {
	billedHours := BilledHours(durationMinutes)

	fullDays := billedHours / 24
	remHours := billedHours % 24

	timeCharge := float64(fullDays) * rule.DailyRate
	timeCharge += math.Min(float64(remHours)*rule.HourlyRate, rule.DailyRate)

	subtotal := rule.BasePrice + timeCharge
	if vip && rule.VIPDiscountPercent > 0 {
		subtotal = subtotal * (1 - rule.VIPDiscountPercent/100.0)
	}
	if evUsed {
		subtotal += rule.EVChargingRate
	}

	return RoundToCent(subtotal)
}

// OverstayCharge 逾時費：預約票逾 reserved_until 離場時，按每開始一小時收
// penalty_rate，不參與 VIP 折扣
func OverstayCharge(rule *models.PricingRule, overstayMinutes int) float64 {
	if overstayMinutes <= 0 || rule.PenaltyRate <= 0 {
		return 0
	}
	hours := int(math.Ceil(float64(overstayMinutes) / 60.0))
	return RoundToCent(float64(hours) * rule.PenaltyRate)
}

// RoundToCent 四捨五入到貨幣最小單位（分）
func RoundToCent(amount float64) float64 {
	return math.Round(amount*100) / 100
}
