package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/password-gate/internal/auth"
	"github.com/yourusername/password-gate/internal/config"
	"github.com/yourusername/password-gate/internal/jobs"
	"github.com/yourusername/password-gate/internal/loginlog"
)

// entryQueue は追記ジョブの投入先です。
type entryQueue interface {
	Enqueue(ctx context.Context, entry loginlog.Entry) (string, error)
}

func entryFromSummary(s auth.Summary) loginlog.Entry {
	return loginlog.NewEntry(s.Name, s.Start, s.End, s.Hours, s.Minutes, s.Seconds)
}

// appendRecorder はログアウト時にその場でファイルへ追記します。
type appendRecorder struct {
	appender *loginlog.Appender
}

func (r *appendRecorder) Record(ctx context.Context, summary auth.Summary) error {
	return r.appender.Append(ctx, entryFromSummary(summary))
}

// queueRecorder は追記をキューへ回します。投入に失敗した場合はその場で追記します。
type queueRecorder struct {
	queue    entryQueue
	appender *loginlog.Appender
	logger   *zap.SugaredLogger
}

func (r *queueRecorder) Record(ctx context.Context, summary auth.Summary) error {
	entry := entryFromSummary(summary)
	taskID, err := r.queue.Enqueue(ctx, entry)
	if err == nil {
		r.logger.Debugw("login log append enqueued", "task", taskID, "name", entry.Name)
		return nil
	}
	r.logger.Warnw("failed to enqueue login log append, writing directly", "name", entry.Name, "error", err)
	return r.appender.Append(ctx, entry)
}

// setupLoginLog はログイン履歴の追記先と、ログアウト時に使う Recorder を組み立てます。
// 返される cleanup はサーバー停止時に呼び出します。
func setupLoginLog(cfg *config.Config, logger *zap.SugaredLogger) (*loginlog.Appender, auth.Recorder, func(), error) {
	var (
		locker   loginlog.Locker
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.LoginLogLockRedisURL != "" {
		opt, err := redis.ParseURL(cfg.LoginLogLockRedisURL)
		if err != nil {
			return nil, nil, cleanup, err
		}
		rdb := redis.NewClient(opt)
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		locker = loginlog.NewRedisLocker(rdb, cfg.LoginLogPath)
		logger.Infow("login log uses redis lock", "addr", opt.Addr)
	}

	appender := loginlog.NewAppender(cfg, locker, logger)

	if cfg.QueueRedisURL == "" {
		return appender, &appendRecorder{appender: appender}, cleanup, nil
	}

	manager, err := jobs.NewManager(cfg, appender, logger)
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	if err := manager.StartWorkers(); err != nil {
		_ = manager.Shutdown(context.Background())
		cleanup()
		return nil, nil, func() {}, err
	}
	cleanups = append(cleanups, func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			logger.Warnw("failed to shut down job manager", "error", err)
		}
	})
	logger.Infow("login log appends go through queue")

	return appender, &queueRecorder{queue: manager, appender: appender, logger: logger}, cleanup, nil
}

// historyHandler は GET /protected/history のハンドラーです。
func historyHandler(appender *loginlog.Appender, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := appender.Entries()
		if err != nil {
			logger.Errorw("failed to read login log", "path", appender.Path(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "LOGIN_LOG_UNREADABLE",
				"message": "Login history could not be read.",
			})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// healthHandler はヘルスチェックエンドポイントのハンドラーです。
// 追記失敗件数を監視用に公開します。
func healthHandler(appender *loginlog.Appender) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"service":          "password-gate",
			"loginLogFailures": appender.Failures(),
		})
	}
}
