// internal/service/booking/infrastructure/mysql.go
package infrastructure

import (
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 建立 MySQL 连接并迁移预订域的表结构。
// dsn 为空时用本地开发默认值。
func NewDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		cfg := mysqldrv.NewConfig()
		cfg.User = "root"
		cfg.Net = "tcp"
		cfg.Addr = "localhost:3306"
		cfg.DBName = "tripnexus"
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}

	if err := db.AutoMigrate(
		&OrderModel{},
		&OrderLineModel{},
		&SubItemModel{},
		&StatusLogModel{},
		&LedgerModel{},
		&ExceptionModel{},
	); err != nil {
		return nil, errors.Wrap(err, "failed to migrate booking schema")
	}
	return db, nil
}
