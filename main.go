package main

import (
	"log"
	"os"
	"parkinglot/database"
	"parkinglot/models"
	"parkinglot/routes"
	"parkinglot/services"
	"parkinglot/utils"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// 載入 .env 檔案
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using default environment variables: %v", err)
	}

	// 調用 AES_KEY 是否加載成功
	if err := utils.InitCrypto(); err != nil {
		log.Fatalf("Failed to initialize crypto: %v", err)
	}
	log.Println("Crypto initialized successfully")

	// 初始化 JWTSecret
	utils.InitJWTSecret()

	// 初始化資料庫
	database.InitDB()

	// 執行資料庫遷移
	database.DB.AutoMigrate(
		&models.Operator{},
		&models.ParkingSlot{},
		&models.Ticket{},
		&models.Reservation{},
		&models.PricingRule{},
		&models.MaintenanceAlert{},
	)
	log.Println("Database migration completed")

	// 確保預設管理員存在
	ensureAdminExists()

	// 確保每種車型都有計費規則，缺規則會讓結帳直接失敗
	ensurePricingRulesExist()

	// 開機先跑一次復原清掃，把當機留下的無主車位收回來
	if _, err := services.ReconcileOrphanedSlots(); err != nil {
		log.Printf("Startup reconciliation failed: %v", err)
	}

	// 設置 Gin 模式為 release
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)
	log.Printf("Gin mode set to %s", ginMode)

	// 初始化 Gin 路由器
	r := gin.Default()

	// 創建一個 API 路由組
	api := r.Group("/api")
	{
		routes.Path(api)
	}

	// 啟動定時任務
	c := cron.New()

	// 檢查預約超時定時任務（每 5 分鐘執行一次）
	_, err := c.AddFunc("*/5 * * * *", func() {
		log.Println("Checking for expired reservations...")
		if _, err := services.SweepExpiredReservations(); err != nil {
			log.Printf("Failed to sweep expired reservations: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule expired reservations sweep cron job: %v", err)
	}

	// 復原清掃定時任務（每 10 分鐘執行一次）
	_, err = c.AddFunc("*/10 * * * *", func() {
		log.Println("Reconciling orphaned slots...")
		if _, err := services.ReconcileOrphanedSlots(); err != nil {
			log.Printf("Failed to reconcile orphaned slots: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule reconciliation cron job: %v", err)
	}

	c.Start()
	log.Println("Cron jobs started")

	// 啟動伺服器
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("Starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists 檢查並創建預設管理員
func ensureAdminExists() {
	var admin models.Operator
	// 檢查是否已經有 admin 角色
	if err := database.DB.Where("role = ?", "admin").First(&admin).Error; err == nil {
		log.Printf("Admin already exists: email=%s", admin.Email)
		return
	}

	password := os.Getenv("DEFAULT_ADMIN_PASSWORD")
	if password == "" {
		log.Println("DEFAULT_ADMIN_PASSWORD not set, skipping default admin creation")
		return
	}

	admin = models.Operator{
		Name:  "Facility Admin",
		Email: "admin@parking.local",
		Role:  "admin",
	}

	// 哈希密碼
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	admin.Password = hashedPassword

	// 插入資料庫
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Fatalf("Failed to create default admin: %v", err)
	}

	log.Printf("Default admin created: email=%s", admin.Email)
}

// ensurePricingRulesExist 為沒有任何規則的車型播種預設規則。
// 播種的規則一樣是 append-only 的普通規則列，之後調價照常插新列
func ensurePricingRulesExist() {
	defaults := map[string]models.PricingRule{
		models.VehicleTwoWheeler: {BasePrice: 10.00, HourlyRate: 5.00, DailyRate: 60.00, PenaltyRate: 10.00, EVChargingRate: 15.00, VIPDiscountPercent: 10.00},
		models.VehicleCar:        {BasePrice: 20.00, HourlyRate: 10.00, DailyRate: 150.00, PenaltyRate: 20.00, EVChargingRate: 30.00, VIPDiscountPercent: 15.00},
		models.VehicleTruck:      {BasePrice: 40.00, HourlyRate: 25.00, DailyRate: 350.00, PenaltyRate: 50.00, EVChargingRate: 0.00, VIPDiscountPercent: 10.00},
	}

	for vehicleType, rule := range defaults {
		var count int64
		if err := database.DB.Model(&models.PricingRule{}).
			Where("vehicle_type = ?", vehicleType).
			Count(&count).Error; err != nil {
			log.Fatalf("Failed to count pricing rules for %s: %v", vehicleType, err)
		}
		if count > 0 {
			continue
		}

		rule.VehicleType = vehicleType
		rule.EffectiveFrom = time.Now().UTC()
		rule.IsActive = true
		rule.CreatedAt = time.Now().UTC()
		if err := database.DB.Create(&rule).Error; err != nil {
			log.Fatalf("Failed to seed pricing rule for %s: %v", vehicleType, err)
		}
		log.Printf("Seeded default pricing rule for %s", vehicleType)
	}
}
