package services

import (
	"errors"
	"fmt"
	"log"
	"parkinglot/database"
	"parkinglot/models"
	"parkinglot/utils"

	"gorm.io/gorm"
)

// RegisterOperator 註冊操作員帳號
func RegisterOperator(operator *models.Operator) error {
	var existing models.Operator
	if err := database.DB.Where("email = ?", operator.Email).First(&existing).Error; err == nil {
		return fmt.Errorf("email %s is already in use", operator.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to check for duplicate email: %v", err)
		return fmt.Errorf("failed to check for duplicate email: %w", err)
	}

	if operator.Role != "admin" && operator.Role != "attendant" {
		return fmt.Errorf("invalid role: must be 'admin' or 'attendant'")
	}

	hashedPassword, err := utils.HashPassword(operator.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return fmt.Errorf("failed to hash password: %w", err)
	}
	operator.Password = hashedPassword

	if err := database.DB.Create(operator).Error; err != nil {
		log.Printf("Failed to register operator: %v", err)
		return fmt.Errorf("failed to register operator: %w", err)
	}

	log.Printf("Successfully registered operator with ID %d", operator.OperatorID)
	return nil
}

// LoginOperator 驗證操作員登入
func LoginOperator(email, password string) (*models.Operator, error) {
	var operator models.Operator
	if err := database.DB.Where("email = ?", email).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Operator with email %s not found", email)
			return nil, fmt.Errorf("無效的電子郵件或密碼")
		}
		log.Printf("Failed to login operator: %v", err)
		return nil, fmt.Errorf("failed to login operator: %w", err)
	}

	if !utils.CheckPasswordHash(password, operator.Password) {
		log.Printf("Invalid password for email %s", email)
		return nil, fmt.Errorf("無效的電子郵件或密碼")
	}

	log.Printf("Operator with ID %d logged in successfully", operator.OperatorID)
	return &operator, nil
}
