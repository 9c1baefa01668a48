package utils

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSecret 簽發與驗證 token 用的密鑰
var JWTSecret []byte

// InitJWTSecret 從環境變數載入 JWT_SECRET
func InitJWTSecret() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatalf("JWT_SECRET environment variable is not set")
	}
	JWTSecret = []byte(secret)
	log.Println("JWT secret initialized")
}

// GenerateToken 為操作員簽發 24 小時有效的 token
func GenerateToken(operatorID int, role string) (string, error) {
	claims := jwt.MapClaims{
		"operator_id": operatorID,
		"role":        role,
		"exp":         time.Now().Add(24 * time.Hour).Unix(),
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
