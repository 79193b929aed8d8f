package database

import (
	"fmt"
	"log"
	"time"

	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func ConnectDB(dsn string) *gorm.DB {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("🔥 Failed to obtain connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	fmt.Println("✅ Database connected successfully")
	return DB
}

// constraints are created after AutoMigrate because gorm tags cannot express
// partial unique indexes.
var constraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payments_pending_per_type
		ON payments (booking_id, payment_type) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_room_active
		ON bookings (room_id, check_in_date) WHERE status IN ('UNPAID','PENDING','DEPOSIT_PAID','CONFIRMED','CHECKED_IN')`,
	`CREATE INDEX IF NOT EXISTS idx_payouts_owner_status ON payouts (admin_kos_id, status)`,
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Room{},
		&models.Booking{},
		&models.Payment{},
		&models.BankAccount{},
		&models.Payout{},
		&models.PayoutAttachment{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	fmt.Println("✅ Database migration successful")
	return nil
}

// SeedDemo inserts one owner with a property, a room and an approved bank
// account so the payment flow can be exercised on an empty database.
func SeedDemo(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.Property{}).Count(&count).Error; err != nil {
		log.Printf("🔥 Failed to check for demo data: %v", err)
		return
	}
	if count > 0 {
		log.Println("Demo data already exists.")
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		owner := models.User{FullName: "Demo Owner", Email: "owner@myhome.local", Role: "ADMINKOS"}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		customer := models.User{FullName: "Demo Customer", Email: "customer@myhome.local", Role: "CUSTOMER"}
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}
		property := models.Property{OwnerID: owner.ID, Name: "Kos Demo", Address: "Jl. Contoh No. 1"}
		if err := tx.Create(&property).Error; err != nil {
			return err
		}
		room := models.Room{
			PropertyID:   property.ID,
			Name:         "A-101",
			DailyPrice:   decimal.NewFromInt(100_000),
			MonthlyPrice: decimal.NewFromInt(1_500_000),
			IsAvailable:  true,
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		account := models.BankAccount{
			OwnerID:       owner.ID,
			BankName:      "BCA",
			AccountNumber: "1234567890",
			AccountName:   owner.FullName,
			Status:        models.BankAccountApproved,
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		log.Printf("🔥 Failed to seed demo data: %v", err)
		return
	}
	log.Println("✅ Demo data seeded successfully")
}
