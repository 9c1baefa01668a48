package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"parkinglot/models"
	"parkinglot/services"
	"parkinglot/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// ReservationInput 建立預約請求
type ReservationInput struct {
	LicensePlate  string `json:"license_plate" binding:"required,max=20"`
	VehicleType   string `json:"vehicle_type" binding:"required,oneof=two_wheeler car truck"`
	ContactName   string `json:"contact_name" binding:"omitempty,max=50"`
	ContactPhone  string `json:"contact_phone" binding:"omitempty,max=20"`
	ReservedFrom  string `json:"reserved_from" binding:"required"`
	ReservedUntil string `json:"reserved_until" binding:"required"`
	EVRequired    bool   `json:"ev_required"`
	VIP           bool   `json:"vip"`
}

// parseWindowTime 解析預約時間，接受 RFC 3339 或不帶時區的格式（視為 UTC）
func parseWindowTime(timeStr string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, timeStr)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse("2006-01-02T15:04:05", timeStr)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("time must be in 'YYYY-MM-DDThh:mm:ss' or RFC 3339 format")
}

// CreateReservation 建立預約
func CreateReservation(c *gin.Context) {
	var input ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Printf("Invalid reservation input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的輸入資料",
			"error":   "請提供車牌、車輛類型與預約時間窗",
			"code":    "ERR_INVALID_INPUT",
		})
		return
	}

	reservedFrom, err := parseWindowTime(input.ReservedFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的預約開始時間格式",
			"error":   err.Error(),
			"code":    "ERR_INVALID_TIME_FORMAT",
		})
		return
	}
	reservedUntil, err := parseWindowTime(input.ReservedUntil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "無效的預約結束時間格式",
			"error":   err.Error(),
			"code":    "ERR_INVALID_TIME_FORMAT",
		})
		return
	}

	reservation, err := services.CreateReservation(input.LicensePlate, input.VehicleType, input.ContactName, input.ContactPhone, reservedFrom, reservedUntil, input.EVRequired, input.VIP)
	if err != nil {
		if errors.Is(err, services.ErrNoAvailabilityForWindow) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  false,
				"message": "該時段沒有可保留的車位",
				"error":   err.Error(),
				"code":    "ERR_NO_AVAILABILITY",
			})
			return
		}
		log.Printf("Failed to create reservation for %s: %v", input.LicensePlate, err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  false,
			"message": "建立預約失敗",
			"error":   err.Error(),
			"code":    "ERR_RESERVATION_FAILED",
		})
		return
	}

	SuccessResponse(c, http.StatusCreated, "預約成功", reservation.ToResponse(input.ContactPhone))
}

// CancelReservation 取消預約
func CancelReservation(c *gin.Context) {
	reservationNumber := c.Param("number")
	if err := services.CancelReservation(reservationNumber); err != nil {
		if errors.Is(err, services.ErrReservationInvalid) {
			ErrorResponse(c, http.StatusConflict, "預約已不可取消", err.Error(), "ERR_RESERVATION_INVALID")
			return
		}
		log.Printf("Failed to cancel reservation %s: %v", reservationNumber, err)
		ErrorResponse(c, http.StatusInternalServerError, "取消預約失敗", err.Error(), "ERR_CANCEL_FAILED")
		return
	}
	SuccessResponse(c, http.StatusOK, "預約已取消", nil)
}

// GetReservation 查詢單一預約
func GetReservation(c *gin.Context) {
	reservationNumber := c.Param("number")
	reservation, err := services.GetReservationByNumber(reservationNumber)
	if err != nil {
		log.Printf("Failed to get reservation %s: %v", reservationNumber, err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢預約失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}
	if reservation == nil {
		ErrorResponse(c, http.StatusNotFound, "找不到預約", "reservation not found", "ERR_RESERVATION_NOT_FOUND")
		return
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", toReservationResponse(reservation))
}

// GetReservations 查詢車牌的預約列表
func GetReservations(c *gin.Context) {
	licensePlate := c.Query("license_plate")
	if licensePlate == "" {
		ErrorResponse(c, http.StatusBadRequest, "缺少車牌參數", "license_plate query parameter is required", "ERR_INVALID_INPUT")
		return
	}

	reservations, err := services.GetReservationsByPlate(licensePlate)
	if err != nil {
		log.Printf("Failed to get reservations for %s: %v", licensePlate, err)
		ErrorResponse(c, http.StatusInternalServerError, "查詢預約失敗", err.Error(), "ERR_QUERY_FAILED")
		return
	}

	responses := make([]interface{}, len(reservations))
	for i := range reservations {
		responses[i] = toReservationResponse(&reservations[i])
	}
	SuccessResponse(c, http.StatusOK, "查詢成功", responses)
}

// toReservationResponse 解密聯絡電話後轉為回應結構，解密失敗時不回傳電話
func toReservationResponse(reservation *models.Reservation) models.ReservationResponse {
	contactPhone := ""
	if reservation.ContactPhone != "" {
		decrypted, err := utils.DecryptContactInfo(reservation.ContactPhone)
		if err != nil {
			log.Printf("Failed to decrypt contact phone for reservation %s: %v", reservation.ReservationNumber, err)
		} else {
			contactPhone = decrypted
		}
	}
	return reservation.ToResponse(contactPhone)
}
