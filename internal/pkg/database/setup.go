package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/models"
	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Models lists every table owned by the settlement core, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Plan{},
		&models.Subscription{},
		&models.QueueEntry{},
		&models.Contribution{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Withdrawal{},
		&models.Referral{},
	}
}

// Config returns the gorm settings shared by production and tests.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetupDatabase connects to MySQL with retries and migrates the schema unless
// DB_AUTO_MIGRATE is "false", in which case cmd/migrate owns the schema.
// lockWait bounds InnoDB row lock waits for every session of the pool.
func SetupDatabase(lockWait time.Duration) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC&innodb_lock_wait_timeout=5"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&innodb_lock_wait_timeout=%d",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
		lockWaitSeconds(lockWait),
	)

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			SkipInitializeWithVersion: false,
		}), Config())
		if err == nil {
			if env.GetEnv("DB_AUTO_MIGRATE", "true") == "false" {
				return db, nil
			}
			if err = db.AutoMigrate(Models()...); err != nil {
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
			return db, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	return nil, err
}

func lockWaitSeconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
