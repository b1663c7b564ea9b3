// Package jobs はログイン履歴の追記を単一ワーカーのキューで実行します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/password-gate/internal/config"
	"github.com/yourusername/password-gate/internal/loginlog"
)

// Appender はキューから取り出した Entry を書き込む先です。
type Appender interface {
	Append(ctx context.Context, entry loginlog.Entry) error
}

// Manager はジョブの投入とワーカーの管理を担います。
type Manager struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	appender Appender
	logger   *zap.SugaredLogger
}

// NewManager は Manager を初期化します。
// ワーカーの並列数は 1 に固定し、同じファイルへの書き込みを1本に絞ります。
func NewManager(cfg *config.Config, appender Appender, logger *zap.SugaredLogger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if appender == nil {
		return nil, errors.New("appender is nil")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				queueName: 1,
			},
			Logger: logger,
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:   client,
		server:   server,
		mux:      mux,
		appender: appender,
		logger:   logger,
	}
	mux.HandleFunc(taskTypeAppend, manager.handleAppendTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
// 停止は Shutdown で行い、シグナルは呼び出し側で扱います。
func (m *Manager) StartWorkers() error {
	if err := m.server.Start(m.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Enqueue は Entry の追記ジョブをキューに投入します。再試行は行いません。
func (m *Manager) Enqueue(ctx context.Context, entry loginlog.Entry) (string, error) {
	body, err := json.Marshal(&TaskPayload{Entry: entry})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypeAppend, body, asynq.Queue(queueName))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (m *Manager) handleAppendTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Entry.Name == "" {
		return fmt.Errorf("missing name in payload: %w", asynq.SkipRetry)
	}

	// 失敗は Appender 側でログ出力済み
	return m.appender.Append(ctx, payload.Entry)
}
