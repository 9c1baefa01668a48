package routes

import (
	"errors"
	"log"
	"net/http"
	"parkinglot/handlers"
	"parkinglot/utils"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware 驗證 JWT token，並提取 operator_id 和 role
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "缺少 Authorization 標頭",
				"error":   "Authorization header is required",
				"code":    "ERR_NO_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "無效的 Authorization 格式",
				"error":   "Authorization header must be in the format 'Bearer <token>'",
				"code":    "ERR_INVALID_AUTH_FORMAT",
			})
			c.Abort()
			return
		}

		tokenString := parts[1]

		// 明確要求檢查 exp 字段
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return utils.JWTSecret, nil
		}, jwt.WithExpirationRequired())

		if err != nil {
			log.Printf("Token parsing error: %v", err)
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  false,
					"message": "token 已過期",
					"error":   "Token has expired",
					"code":    "ERR_TOKEN_EXPIRED",
				})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  false,
					"message": "無效的 token",
					"error":   err.Error(),
					"code":    "ERR_INVALID_TOKEN",
				})
			}
			c.Abort()
			return
		}

		// 檢查 Claims 是否有效
		if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
			// 確認 exp 字段存在
			if exp, ok := claims["exp"].(float64); !ok {
				log.Printf("Missing or invalid exp in token")
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  false,
					"message": "無效的 token 內容",
					"error":   "Missing or invalid exp claim",
					"code":    "ERR_INVALID_CLAIMS",
				})
				c.Abort()
				return
			} else {
				log.Printf("Token verified: exp=%v, current_time=%v", exp, time.Now().Unix())
			}

			// 確認 operator_id 字段
			operatorID, ok := claims["operator_id"].(float64)
			if !ok {
				log.Printf("Missing or invalid operator_id in token")
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  false,
					"message": "無效的操作員 ID",
					"error":   "Invalid operator_id in token",
					"code":    "ERR_INVALID_OPERATOR_ID",
				})
				c.Abort()
				return
			}

			// 確認 role 字段
			role, ok := claims["role"].(string)
			if !ok || (role != "admin" && role != "attendant") {
				log.Printf("Missing or invalid role in token: %v", role)
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  false,
					"message": "無效的角色",
					"error":   "Invalid role in token",
					"code":    "ERR_INVALID_ROLE",
				})
				c.Abort()
				return
			}

			c.Set("operator_id", int(operatorID))
			c.Set("role", role) // 將 role 存入上下文
		} else {
			log.Printf("Invalid token claims or token is not valid")
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "無效的 token 內容",
				"error":   "Invalid token claims or token is not valid",
				"code":    "ERR_INVALID_CLAIMS",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RoleMiddleware 檢查操作員角色是否符合要求
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "無法獲取角色資訊",
				"error":   "Role not found in context",
				"code":    "ERR_ROLE_NOT_FOUND",
			})
			c.Abort()
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "無效的角色類型",
				"error":   "Invalid role type",
				"code":    "ERR_INVALID_ROLE_TYPE",
			})
			c.Abort()
			return
		}

		// 允許 admin 角色訪問所有端點
		if roleStr == "admin" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedRole := range allowedRoles {
			if roleStr == allowedRole {
				allowed = true
				break
			}
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  false,
				"message": "權限不足",
				"error":   "Insufficient role permissions",
				"code":    "ERR_INSUFFICIENT_PERMISSIONS",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func Path(router *gin.RouterGroup) {
	// 版本控制
	v1 := router.Group("/v1")
	{
		// 測試路由
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(200, gin.H{"message": "pong"})
		})

		// 操作員路由
		operators := v1.Group("/operators")
		{
			// 公開路由：不需要 token 驗證
			operators.POST("/login", handlers.LoginOperator) // 登入並獲取 token

			// 受保護路由：僅 admin 可以建立帳號
			operatorsWithAuth := operators.Group("")
			operatorsWithAuth.Use(AuthMiddleware())
			{
				operatorsWithAuth.POST("/register", RoleMiddleware("admin"), handlers.RegisterOperator)
			}
		}

		// 票券路由：閘門端操作，attendant 與 admin 皆可
		tickets := v1.Group("/tickets")
		tickets.Use(AuthMiddleware())
		{
			tickets.POST("/check-in", RoleMiddleware("attendant"), handlers.CheckIn)          // 進場開票
			tickets.POST("/check-out", RoleMiddleware("attendant"), handlers.CheckOut)        // 離場結帳
			tickets.GET("/active", RoleMiddleware("attendant"), handlers.GetActiveTickets)    // 進行中票券
			tickets.GET("/:number", RoleMiddleware("attendant"), handlers.GetTicket)          // 查詢票券
			tickets.DELETE("/:number", RoleMiddleware("admin"), handlers.CancelTicket)        // 作廢票券（僅 admin）
		}

		// 預約路由
		reservations := v1.Group("/reservations")
		reservations.Use(AuthMiddleware())
		{
			reservations.POST("", RoleMiddleware("attendant"), handlers.CreateReservation)              // 建立預約
			reservations.GET("", RoleMiddleware("attendant"), handlers.GetReservations)                 // 查詢車牌的預約
			reservations.GET("/:number", RoleMiddleware("attendant"), handlers.GetReservation)          // 查詢單一預約
			reservations.DELETE("/:number", RoleMiddleware("attendant"), handlers.CancelReservation)    // 取消預約
		}

		// 管理路由：僅 admin
		admin := v1.Group("/admin")
		admin.Use(AuthMiddleware(), RoleMiddleware("admin"))
		{
			admin.POST("/slots", handlers.CreateSlot)                           // 新增車位
			admin.GET("/slots", handlers.GetSlots)                              // 查詢車位
			admin.POST("/slots/:id/block", handlers.BlockSlot)                  // 封鎖車位
			admin.POST("/slots/:id/unblock", handlers.UnblockSlot)              // 解除封鎖
			admin.POST("/alerts", handlers.CreateMaintenanceAlert)              // 開立維修警報
			admin.POST("/alerts/:id/resolve", handlers.ResolveMaintenanceAlert) // 關閉維修警報
			admin.GET("/alerts", handlers.GetMaintenanceAlerts)                 // 查詢警報
			admin.POST("/pricing-rules", handlers.CreatePricingRule)            // 新增計費規則（append-only）
			admin.GET("/pricing-rules", handlers.GetPricingRules)               // 查詢計費規則
			admin.GET("/dashboard", handlers.GetDashboard)                      // 營運看板
		}
	}
}
