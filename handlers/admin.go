package handlers

import (
	"errors"
	"log"
	"net/http"
	"parkinglot/models"
	"parkinglot/services"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CreateSlot 新增車位
func CreateSlot(c *gin.Context) {
	var slot models.ParkingSlot
	if err := c.ShouldBindJSON(&slot); err != nil {
		log.Printf("Invalid slot input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的輸入資料",
			"error":   "請提供車位代碼、樓層與車輛類型",
			"code":    "ERR_INVALID_INPUT",
		})
		return
	}

	if err := services.CreateSlot(&slot); err != nil {
		log.Printf("Failed to create slot %s: %v", slot.SlotCode, err)
		ErrorResponse(c, http.StatusBadRequest, "新增車位失敗", err.Error(), "ERR_CREATE_SLOT_FAILED")
		return
	}
	SuccessResponse(c, http.StatusCreated, "車位已新增", slot.ToResponse())
}

// GetSlots 查詢車位列表
func GetSlots(c *gin.Context) {
	status := c.Query("status")
	var floor *int
	if floorStr := c.Query("floor"); floorStr != "" {
		f, err := strconv.Atoi(floorStr)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "無效的樓層", err.Error(), "ERR_INVALID_INPUT")
			return
		}
		floor = &f
	}

	slots, err := services.GetSlots(status, floor)
	if err != nil {
		log.Printf("Failed to query slots: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢車位失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}

	responses := make([]interface{}, len(slots))
	for i := range slots {
		responses[i] = slots[i].ToResponse()
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", responses)
}

// BlockSlotInput 封鎖車位請求
type BlockSlotInput struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// BlockSlot 封鎖車位
func BlockSlot(c *gin.Context) {
	slotID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "無效的車位 ID", err.Error(), "ERR_INVALID_ID")
		return
	}

	var input BlockSlotInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的輸入資料",
			"error":   "請提供封鎖原因",
			"code":    "ERR_INVALID_INPUT",
		})
		return
	}

	if err := services.BlockSlot(slotID, input.Reason); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			ErrorResponse(c, http.StatusConflict, "目前狀態不允許封鎖", err.Error(), "ERR_INVALID_TRANSITION")
			return
		}
		log.Printf("Failed to block slot %d: %v", slotID, err)
		ErrorResponse(c, http.StatusInternalServerError, "封鎖車位失敗", err.Error(), "ERR_BLOCK_FAILED")
		return
	}
	SuccessResponse(c, http.StatusOK, "車位已封鎖", nil)
}

// UnblockSlot 解除封鎖
func UnblockSlot(c *gin.Context) {
	slotID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "無效的車位 ID", err.Error(), "ERR_INVALID_ID")
		return
	}

	if err := services.UnblockSlot(slotID); err != nil {
		log.Printf("Failed to unblock slot %d: %v", slotID, err)
		ErrorResponse(c, http.StatusConflict, "解除封鎖失敗", err.Error(), "ERR_UNBLOCK_FAILED")
		return
	}
	SuccessResponse(c, http.StatusOK, "車位已解除封鎖", nil)
}

// CreateMaintenanceAlert 開立維修警報
func CreateMaintenanceAlert(c *gin.Context) {
	var alert models.MaintenanceAlert
	if err := c.ShouldBindJSON(&alert); err != nil {
		log.Printf("Invalid maintenance alert input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的輸入資料",
			"error":   "請提供車位 ID 與警報類型",
			"code":    "ERR_INVALID_INPUT",
		})
		return
	}

	if err := services.CreateMaintenanceAlert(&alert); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			ErrorResponse(c, http.StatusConflict, "目前狀態不允許開立警報", err.Error(), "ERR_INVALID_TRANSITION")
			return
		}
		log.Printf("Failed to create maintenance alert on slot %d: %v", alert.SlotID, err)
		ErrorResponse(c, http.StatusBadRequest, "開立警報失敗", err.Error(), "ERR_ALERT_FAILED")
		return
	}
	SuccessResponse(c, http.StatusCreated, "警報已開立", alert.ToResponse())
}

// ResolveMaintenanceAlert 關閉維修警報
func ResolveMaintenanceAlert(c *gin.Context) {
	alertID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "無效的警報 ID", err.Error(), "ERR_INVALID_ID")
		return
	}

	if err := services.ResolveMaintenanceAlert(alertID); err != nil {
		log.Printf("Failed to resolve maintenance alert %d: %v", alertID, err)
		ErrorResponse(c, http.StatusInternalServerError, "關閉警報失敗", err.Error(), "ERR_RESOLVE_FAILED")
		return
	}
	SuccessResponse(c, http.StatusOK, "警報已關閉", nil)
}

// GetMaintenanceAlerts 查詢警報列表
func GetMaintenanceAlerts(c *gin.Context) {
	alerts, err := services.GetMaintenanceAlerts(c.Query("status"))
	if err != nil {
		log.Printf("Failed to query maintenance alerts: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢警報失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}

	responses := make([]interface{}, len(alerts))
	for i := range alerts {
		responses[i] = alerts[i].ToResponse()
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", responses)
}

// PricingRuleInput 新增計費規則請求
type PricingRuleInput struct {
	VehicleType        string  `json:"vehicle_type" binding:"required,oneof=two_wheeler car truck"`
	BasePrice          float64 `json:"base_price" binding:"gte=0"`
	HourlyRate         float64 `json:"hourly_rate" binding:"required,gt=0"`
	DailyRate          float64 `json:"daily_rate" binding:"required,gt=0"`
	PenaltyRate        float64 `json:"penalty_rate" binding:"gte=0"`
	EVChargingRate     float64 `json:"ev_charging_rate" binding:"gte=0"`
	VIPDiscountPercent float64 `json:"vip_discount_percent" binding:"gte=0,lte=100"`
	EffectiveFrom      string  `json:"effective_from"`
}

// CreatePricingRule 新增計費規則（append-only，不修改既有規則）
func CreatePricingRule(c *gin.Context) {
	var input PricingRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Printf("Invalid pricing rule input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的輸入資料",
			"error":   "請提供車輛類型與費率",
			"code":    "ERR_INVALID_INPUT",
		})
		return
	}

	rule := models.PricingRule{
		VehicleType:        input.VehicleType,
		BasePrice:          input.BasePrice,
		HourlyRate:         input.HourlyRate,
		DailyRate:          input.DailyRate,
		PenaltyRate:        input.PenaltyRate,
		EVChargingRate:     input.EVChargingRate,
		VIPDiscountPercent: input.VIPDiscountPercent,
	}
	if input.EffectiveFrom != "" {
		effectiveFrom, err := time.Parse(time.RFC3339, input.EffectiveFrom)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "無效的生效時間格式", err.Error(), "ERR_INVALID_TIME_FORMAT")
			return
		}
		rule.EffectiveFrom = effectiveFrom.UTC()
	}

	if err := services.CreatePricingRule(&rule); err != nil {
		log.Printf("Failed to create pricing rule: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "新增計費規則失敗", err.Error(), "ERR_CREATE_RULE_FAILED")
		return
	}
	SuccessResponse(c, http.StatusCreated, "計費規則已新增", rule.ToResponse())
}

// GetPricingRules 查詢計費規則
func GetPricingRules(c *gin.Context) {
	rules, err := services.GetPricingRules(c.Query("vehicle_type"))
	if err != nil {
		log.Printf("Failed to query pricing rules: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢計費規則失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}

	responses := make([]interface{}, len(rules))
	for i := range rules {
		responses[i] = rules[i].ToResponse()
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", responses)
}

// GetDashboard 營運看板
func GetDashboard(c *gin.Context) {
	summary, err := services.GetDashboardSummary()
	if err != nil {
		log.Printf("Failed to build dashboard summary: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢看板失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", summary)
}
