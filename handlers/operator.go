package handlers

import (
	"log"
	"net/http"
	"parkinglot/models"
	"parkinglot/services"
	"parkinglot/utils"
	"regexp"

	"github.com/gin-gonic/gin"
)

// 預編譯 email 的正則表達式
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// RegisterOperator 註冊操作員
func RegisterOperator(c *gin.Context) {
	var operator models.Operator
	if err := c.ShouldBindJSON(&operator); err != nil {
		log.Printf("Invalid operator input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的輸入資料"})
		return
	}

	if !emailRegex.MatchString(operator.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "請提供有效的電子郵件地址"})
		return
	}
	if len(operator.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "密碼至少需要 8 個字元"})
		return
	}

	if err := services.RegisterOperator(&operator); err != nil {
		log.Printf("Failed to register operator with email %s: %v", operator.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "操作員註冊成功",
		"data":    operator.ToResponse(),
	})
}

// LoginOperator 操作員登入並簽發 token
func LoginOperator(c *gin.Context) {
	var loginData struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginData); err != nil {
		log.Printf("Invalid login input: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的輸入資料"})
		return
	}

	if !emailRegex.MatchString(loginData.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "請提供有效的電子郵件地址"})
		return
	}

	operator, err := services.LoginOperator(loginData.Email, loginData.Password)
	if err != nil {
		log.Printf("Login failed for email %s: %v", loginData.Email, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "登入失敗，檢查電子郵件或密碼"})
		return
	}

	token, err := utils.GenerateToken(operator.OperatorID, operator.Role)
	if err != nil {
		log.Printf("Failed to generate token for operator %d: %v", operator.OperatorID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token 簽發失敗"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "登入成功",
		"token":   token,
		"data":    operator.ToResponse(),
	})
}
