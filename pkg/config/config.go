// pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 时长配置, 支持 "60s"/"5m" 写法
type Duration time.Duration

// UnmarshalYAML 解析时长字符串
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("解析时长 %q 失败: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转换为标准库时长
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 应用配置
// 调度器和对账器共用同一份配置, 不再各自散落常量
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Database struct {
		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"database"`

	PriceSource struct {
		APIKey  string   `yaml:"api_key"`
		BaseURL string   `yaml:"base_url"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"price_source"`

	Chat struct {
		Token   string   `yaml:"token"`
		BaseURL string   `yaml:"base_url"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"chat"`

	NATS struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"nats"`

	Poll struct {
		Interval         Duration `yaml:"interval"`           // 轮询周期, 默认60秒
		Concurrency      int      `yaml:"concurrency"`        // 同时处理的工作区数
		AlertChannelName string   `yaml:"alert_channel_name"` // 告警频道名
	} `yaml:"poll"`

	Billing struct {
		TermDays     int               `yaml:"term_days"`      // 付费周期天数
		FreePlanName string            `yaml:"free_plan_name"` // 默认档位名
		SKUPlans     map[string]string `yaml:"sku_plans"`      // SKU ID -> 档位名
	} `yaml:"billing"`

	API struct {
		Port         string   `yaml:"port"`
		ReadTimeout  Duration `yaml:"read_timeout"`
		WriteTimeout Duration `yaml:"write_timeout"`
	} `yaml:"api"`
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 环境变量覆盖
	overrideFromEnv(&config)

	// 填充默认值
	applyDefaults(&config)

	return &config, nil
}

// applyDefaults 填充缺省配置
func applyDefaults(config *Config) {
	if config.Poll.Interval <= 0 {
		config.Poll.Interval = Duration(60 * time.Second)
	}
	if config.Poll.Concurrency <= 0 {
		config.Poll.Concurrency = 4
	}
	if config.Poll.AlertChannelName == "" {
		config.Poll.AlertChannelName = "stock-alerts"
	}
	if config.Billing.TermDays <= 0 {
		config.Billing.TermDays = 30
	}
	if config.Billing.FreePlanName == "" {
		config.Billing.FreePlanName = "Free"
	}
	if config.PriceSource.Timeout <= 0 {
		config.PriceSource.Timeout = Duration(10 * time.Second)
	}
	if config.Chat.Timeout <= 0 {
		config.Chat.Timeout = Duration(10 * time.Second)
	}
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	// 应用名称
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}

	// 环境
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 行情源配置
	if env := os.Getenv("PRICE_API_KEY"); env != "" {
		config.PriceSource.APIKey = env
	}
	if env := os.Getenv("PRICE_BASE_URL"); env != "" {
		config.PriceSource.BaseURL = env
	}

	// 聊天平台配置
	if env := os.Getenv("CHAT_TOKEN"); env != "" {
		config.Chat.Token = env
	}
	if env := os.Getenv("CHAT_BASE_URL"); env != "" {
		config.Chat.BaseURL = env
	}

	// 数据库配置
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Postgres.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		var port int
		fmt.Sscanf(env, "%d", &port)
		if port > 0 {
			config.Database.Postgres.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.Postgres.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Postgres.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.Postgres.DBName = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
