package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL 连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 拼接 lib/pq DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config smartfarm-backend（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	JWT  JWTConfig
	Mail MailConfig
	Log  struct {
		Level  string
		Format string
	}
	SeedAdmin bool
}

// JWTConfig 令牌签发配置
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// MailConfig 邮件 API 服务配置（HTTP 投递网关）
type MailConfig struct {
	BaseURL     string // 邮件网关地址
	APIKey      string // API Key
	FromAddress string // 发件人地址
	FromName    string // 发件人显示名
	Enabled     bool   // 未配置网关时关闭外发，只记日志
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "smartfarm")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.JWT.Secret = getEnv("JWT_SECRET", "change-me-in-production")
	cfg.JWT.ExpireHours = parseInt(getEnv("JWT_EXPIRE_HOURS", "24"), 24)

	cfg.Mail.BaseURL = getEnv("MAIL_API_BASE_URL", "")
	cfg.Mail.APIKey = getEnv("MAIL_API_KEY", "")
	cfg.Mail.FromAddress = getEnv("MAIL_FROM_ADDRESS", "noreply@smartfarm360.com")
	cfg.Mail.FromName = getEnv("MAIL_FROM_NAME", "SmartFarm360")
	cfg.Mail.Enabled = cfg.Mail.BaseURL != ""

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 首次启动时是否写入内置系统管理员账号
	cfg.SeedAdmin = getEnv("SEED_ADMIN", "true") == "true"

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
