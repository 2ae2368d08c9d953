// pkg/database/postgres.go
package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"StockRadar/pkg/config"
	"StockRadar/pkg/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// Postgres Postgres数据库连接
type Postgres struct {
	db *gorm.DB
}

// NewPostgres 创建新的Postgres连接
func NewPostgres(cfg *config.Config) (*Postgres, error) {
	dbCfg := cfg.Database.Postgres

	// 构建连接字符串
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBName, dbCfg.SSLMode,
	)

	// 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}

	// 自动迁移表结构
	if err := db.AutoMigrate(
		&model.Workspace{},
		&model.Instrument{},
		&model.Subscription{},
		&model.Plan{},
		&model.PlanAssignment{},
	); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close 关闭数据库连接
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) Workspace() *WorkspaceDB {
	return &WorkspaceDB{db: p.db}
}

func (p *Postgres) Instrument() *InstrumentDB {
	return &InstrumentDB{db: p.db}
}

func (p *Postgres) Subscription() *SubscriptionDB {
	return &SubscriptionDB{db: p.db}
}

func (p *Postgres) Plan() *PlanDB {
	return &PlanDB{db: p.db}
}

func (p *Postgres) Assignment() *AssignmentDB {
	return &AssignmentDB{db: p.db}
}
