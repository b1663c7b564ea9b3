// Package main はWebサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/password-gate/internal/auth"
	"github.com/yourusername/password-gate/internal/config"
	"github.com/yourusername/password-gate/internal/loginlog"
	"github.com/yourusername/password-gate/internal/web"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger, err := newLogger(cfg.GinMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	appender, recorder, cleanup, err := setupLoginLog(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to set up login log", "error", err)
	}
	defer cleanup()

	router, err := newRouter(cfg, appender, recorder, logger)
	if err != nil {
		logger.Fatalw("Failed to set up router", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("Failed to start server", "error", err)
			stop()
		}
	}()
	logger.Infow("Server running", "url", "http://localhost:"+cfg.Port, "mode", cfg.GinMode, "loginLog", cfg.LoginLogPath)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Failed to shut down server", "error", err)
	}
}

// newRouter はミドルウェア・テンプレート・ルーティングを設定した Gin エンジンを返します。
func newRouter(cfg *config.Config, appender *loginlog.Appender, recorder auth.Recorder, logger *zap.SugaredLogger) (*gin.Engine, error) {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定（有効期限は1時間が既定）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(auth.SessionOptions(cfg))
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORS許可オリジンが設定されている場合だけ有効にする
	if cfg.CORSAllowedOrigins != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
		corsConfig.AllowCredentials = true
		router.Use(cors.New(corsConfig))
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	router.Static("/static", cfg.StaticDir)

	setupRoutes(router, cfg, appender, recorder, logger)
	return router, nil
}

// setupRoutes は画面と認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, appender *loginlog.Appender, recorder auth.Recorder, logger *zap.SugaredLogger) {
	router.GET("/health", healthHandler(appender))

	authManager := auth.NewManager(cfg)
	handler := auth.NewHandler(authManager, recorder, logger)

	router.GET(auth.HomePath, handler.Home)
	router.GET(auth.LoginPath, handler.LoginPage)
	router.POST(auth.LoginPath, handler.Login)
	router.GET("/logout", handler.Logout)

	protected := router.Group(auth.ProtectedPath)
	protected.Use(authManager.RequireLogin())
	{
		protected.GET("", handler.Protected)
		protected.GET("/history", historyHandler(appender, logger))
	}
}
