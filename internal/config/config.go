// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret は開発時にだけ使うセッション署名鍵です。
const DefaultSessionSecret = "supersecretkey"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定
	AdminPassword string // 保護ページ用の共有パスワード
	SessionSecret string // セッション署名用の秘密鍵
	SessionMaxAge int    // セッションクッキーの有効期間（秒）

	// サーバー設定
	Port      string // HTTPサーバーのポート番号
	GinMode   string // Ginの実行モード (debug, release, test)
	StaticDir string // 静的ファイルの配信元ディレクトリ

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り、空なら無効）

	// ログイン履歴設定
	LoginLogPath         string        // ログイン履歴(JSON配列)の保存先
	LoginLogLockTimeout  time.Duration // 追記時のロック待ち上限
	LoginLogLockRedisURL string        // プロセス間ロック用Redis接続URL（任意）
	QueueRedisURL        string        // Asynq用Redis接続URL（任意、設定時は追記をキュー経由にする）
}

// Load は環境変数から設定を読み込みます。
// .env ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionMaxAge: getEnvAsInt("SESSION_MAX_AGE", 3600), // 1時間

		Port:      getEnv("PORT", "3000"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		StaticDir: getEnv("STATIC_DIR", "public"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		LoginLogPath:         getEnv("LOGIN_LOG_PATH", "user_login.json"),
		LoginLogLockTimeout:  getEnvAsDuration("LOGIN_LOG_LOCK_TIMEOUT", 5*time.Second),
		LoginLogLockRedisURL: getEnv("LOGIN_LOG_LOCK_REDIS_URL", ""),
		QueueRedisURL:        getEnv("QUEUE_REDIS_URL", ""),
	}

	// release 以外では署名鍵を省略できる
	if config.SessionSecret == "" && config.GinMode != "release" {
		config.SessionSecret = DefaultSessionSecret
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.LoginLogPath == "" {
		return fmt.Errorf("LOGIN_LOG_PATH must not be empty")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge)
	}
	if c.LoginLogLockTimeout <= 0 {
		return fmt.Errorf("LOGIN_LOG_LOCK_TIMEOUT must be positive, got %s", c.LoginLogLockTimeout)
	}

	// 本番環境では認証設定を必須にする
	if c.GinMode == "release" {
		if c.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "5s"）。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
