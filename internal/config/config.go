package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 邮箱后端
const (
	BackendIMAP   = "imap"
	BackendMemory = "memory"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host            string        // 监听地址，默认 "0.0.0.0"
	Port            int           // 监听端口，默认 8080
	ShutdownTimeout time.Duration // 优雅关闭等待时间，默认 10 秒
}

// MailConfig 定义共享邮箱的连接配置
type MailConfig struct {
	Backend            string        // "imap" 或 "memory"（本地开发）
	Host               string        // IMAP 服务器地址
	Port               int           // IMAP 端口，默认 993
	Username           string        // 邮箱账号
	Password           string        // 邮箱密码
	TLS                string        // "implicit"、"starttls" 或 "none"
	InsecureSkipVerify bool          // 跳过证书校验，仅用于测试环境
	DialTimeout        time.Duration // 连接和登录超时，默认 15 秒
	Inbox              string        // 收件箱名称，默认 "INBOX"
	Domain             string        // 别名地址使用的域名
	SeedDir            string        // memory 后端启动时导入的 .eml 目录
}

// RetentionConfig 定义定时清理配置
type RetentionConfig struct {
	Enabled     bool          // 是否启用定时清理
	Interval    time.Duration // 清理间隔，默认 1 小时
	Timeout     time.Duration // 单次清理超时，默认 10 分钟
	LockTTL     time.Duration // 清理锁过期时间，默认 30 分钟
	MaxAgeDays  int           // 超过该天数的邮件被删除，默认 30
	WarnAgeDays int           // 超过该天数的邮件计入告警，默认 20
	SpamFolders []string      // 垃圾邮件文件夹名称关键字
}

// RetrievalConfig 定义邮件检索配置
type RetrievalConfig struct {
	DefaultLimit int           // 未指定 limit 时的默认条数，默认 50
	MaxLimit     int           // limit 上限，默认 200
	Timeout      time.Duration // 单次检索超时，默认 30 秒
}

// RateLimitConfig 定义别名接口的按 IP 限流
type RateLimitConfig struct {
	Requests int           // 窗口内允许的请求数，默认 30
	Window   time.Duration // 窗口长度，默认 1 分钟
}

// RedisConfig 定义 Redis 配置，地址为空时使用进程内实现
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
	Prefix   string // 键前缀，默认 "ghostinbox:"
}

// AdminConfig 定义管理接口配置
type AdminConfig struct {
	Token string // 管理令牌，留空则不开放管理接口
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到标准输出
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Mail      MailConfig
	Retention RetentionConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Log       LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: GHOSTINBOX_
// 例如: GHOSTINBOX_MAIL_HOST, GHOSTINBOX_RETENTION_MAX_AGE_DAYS
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("ghostinbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	durations := map[string]*time.Duration{}
	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Mail: MailConfig{
			Backend:            strings.ToLower(v.GetString("mail.backend")),
			Host:               v.GetString("mail.host"),
			Port:               v.GetInt("mail.port"),
			Username:           v.GetString("mail.username"),
			Password:           v.GetString("mail.password"),
			TLS:                strings.ToLower(v.GetString("mail.tls")),
			InsecureSkipVerify: v.GetBool("mail.insecure_skip_verify"),
			Inbox:              v.GetString("mail.inbox"),
			Domain:             strings.ToLower(strings.TrimSpace(v.GetString("mail.domain"))),
			SeedDir:            v.GetString("mail.seed_dir"),
		},
		Retention: RetentionConfig{
			Enabled:     v.GetBool("retention.enabled"),
			MaxAgeDays:  v.GetInt("retention.max_age_days"),
			WarnAgeDays: v.GetInt("retention.warn_age_days"),
			SpamFolders: parseList(v.GetString("retention.spam_folders")),
		},
		Retrieval: RetrievalConfig{
			DefaultLimit: v.GetInt("retrieval.default_limit"),
			MaxLimit:     v.GetInt("retrieval.max_limit"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Admin: AdminConfig{
			Token: v.GetString("admin.token"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseList(v.GetString("cors.allowed_origins")),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
	}

	durations["server.shutdown_timeout"] = &cfg.Server.ShutdownTimeout
	durations["mail.dial_timeout"] = &cfg.Mail.DialTimeout
	durations["retention.interval"] = &cfg.Retention.Interval
	durations["retention.timeout"] = &cfg.Retention.Timeout
	durations["retention.lock_ttl"] = &cfg.Retention.LockTTL
	durations["retrieval.timeout"] = &cfg.Retrieval.Timeout
	durations["rate_limit.window"] = &cfg.RateLimit.Window

	for key, target := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = d
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("mail.backend", BackendIMAP)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.tls", "implicit")
	v.SetDefault("mail.insecure_skip_verify", false)
	v.SetDefault("mail.dial_timeout", "15s")
	v.SetDefault("mail.inbox", "INBOX")
	v.SetDefault("mail.domain", "")
	v.SetDefault("mail.seed_dir", "")
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.interval", "1h")
	v.SetDefault("retention.timeout", "10m")
	v.SetDefault("retention.lock_ttl", "30m")
	v.SetDefault("retention.max_age_days", 30)
	v.SetDefault("retention.warn_age_days", 20)
	v.SetDefault("retention.spam_folders", "spam,junk,bulk,spam_folder,junk_mail")
	v.SetDefault("retrieval.default_limit", 50)
	v.SetDefault("retrieval.max_limit", 200)
	v.SetDefault("retrieval.timeout", "30s")
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ghostinbox:")
	v.SetDefault("admin.token", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
}

// Validate 校验配置之间的约束
func (c *Config) Validate() error {
	var errs []error

	if c.Mail.Domain == "" {
		errs = append(errs, errors.New("mail.domain must not be empty"))
	}

	switch c.Mail.Backend {
	case BackendIMAP:
		if c.Mail.Host == "" || c.Mail.Username == "" || c.Mail.Password == "" {
			errs = append(errs, errors.New("mail.host, mail.username and mail.password are required for the imap backend"))
		}
		switch c.Mail.TLS {
		case "implicit", "starttls", "none":
		default:
			errs = append(errs, fmt.Errorf("mail.tls must be implicit, starttls or none, got %q", c.Mail.TLS))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("mail.backend must be imap or memory, got %q", c.Mail.Backend))
	}

	if c.Retention.MaxAgeDays <= 0 {
		errs = append(errs, errors.New("retention.max_age_days must be positive"))
	}
	if c.Retention.WarnAgeDays < 0 || c.Retention.WarnAgeDays >= c.Retention.MaxAgeDays {
		errs = append(errs, errors.New("retention.warn_age_days must be in [0, max_age_days)"))
	}
	if c.Retention.Enabled && c.Retention.Interval <= 0 {
		errs = append(errs, errors.New("retention.interval must be positive when retention is enabled"))
	}

	// 清理锁必须覆盖一次清理的最长耗时，否则锁过期后其他实例可能同时清理
	if c.Retention.Timeout <= 0 || c.Retention.LockTTL < c.Retention.Timeout {
		errs = append(errs, errors.New("retention.lock_ttl must be at least retention.timeout"))
	}

	if c.Retrieval.MaxLimit <= 0 || c.Retrieval.DefaultLimit <= 0 || c.Retrieval.DefaultLimit > c.Retrieval.MaxLimit {
		errs = append(errs, errors.New("retrieval.default_limit must be in [1, max_limit]"))
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}

	// 管理令牌必须至少 16 字符
	if c.Admin.Token != "" && len(c.Admin.Token) < 16 {
		errs = append(errs, errors.New("SECURITY ERROR: admin.token must be at least 16 characters long"))
	}

	return errors.Join(errs...)
}

// Addr 返回 HTTP 监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parseList 将逗号分隔的字符串解析为字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
