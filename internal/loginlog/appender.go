package loginlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/password-gate/internal/config"
)

const defaultLockTimeout = 5 * time.Second

// Locker は複数プロセスから同じファイルへ追記する場合に、
// 読み込みから書き込みまでを排他するためのロックです。
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Appender はログイン履歴ファイルへの追記を直列化して行います。
type Appender struct {
	path        string
	lockTimeout time.Duration
	locker      Locker
	logger      *zap.SugaredLogger

	mu       sync.Mutex
	failures atomic.Uint64
}

// NewAppender は Appender を作成します。locker が nil の場合はプロセス内の排他のみ行います。
func NewAppender(cfg *config.Config, locker Locker, logger *zap.SugaredLogger) *Appender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := cfg.LoginLogLockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &Appender{
		path:        cfg.LoginLogPath,
		lockTimeout: timeout,
		locker:      locker,
		logger:      logger,
	}
}

// Path は保存先ファイルのパスを返します。
func (a *Appender) Path() string {
	return a.path
}

// Failures はこれまでに握りつぶした追記失敗の件数を返します。
func (a *Appender) Failures() uint64 {
	return a.failures.Load()
}

// Append は entry をファイル末尾に追加します。
// 失敗はログに出力したうえで返しますが、呼び出し側は無視して構いません。
// 失敗した場合、ファイルは変更されません。
func (a *Appender) Append(ctx context.Context, entry Entry) error {
	if err := a.appendEntry(ctx, entry); err != nil {
		a.failures.Add(1)
		a.logger.Errorw("failed to write login log",
			"path", a.path,
			"name", entry.Name,
			"error", err,
		)
		return err
	}
	a.logger.Debugw("login log appended", "path", a.path, "name", entry.Name)
	return nil
}

// Entries はファイルに保存されている履歴を古い順に返します。
func (a *Appender) Entries() ([]Entry, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read login log: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse login log: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (a *Appender) appendEntry(ctx context.Context, entry Entry) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
		defer cancel()
		unlock, err := a.locker.Lock(lockCtx)
		if err != nil {
			return fmt.Errorf("failed to acquire login log lock: %w", err)
		}
		defer unlock()
	}

	records, err := a.readRecords()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode login entry: %w", err)
	}
	records = append(records, raw)

	return a.writeRecords(records)
}

// readRecords はファイルを読み込みます。読めない場合は空配列として扱います。
// 既存要素は書き換えないよう json.RawMessage のまま保持します。
func (a *Appender) readRecords() ([]json.RawMessage, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		a.logger.Debugw("login log unreadable, starting from empty array", "path", a.path, "error", err)
		data = []byte("[]")
	}
	return decodeRecords(data)
}

func decodeRecords(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []json.RawMessage{}, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("failed to parse login log: top-level value is not an array")
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to parse login log: %w", err)
	}
	for i, rec := range records {
		rec = bytes.TrimSpace(rec)
		if len(rec) == 0 || rec[0] != '{' {
			return nil, fmt.Errorf("failed to parse login log: element %d is not an object", i)
		}
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// writeRecords は配列全体を一時ファイルに書き出し、rename で置き換えます。
func (a *Appender) writeRecords(records []json.RawMessage) error {
	data, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("failed to encode login log: %w", err)
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write login log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close login log: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod login log: %w", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace login log: %w", err)
	}
	return nil
}

// encodeRecords は 2 スペースでインデントした配列を返します（末尾改行なし）。
// 既存要素の '<' '>' '&' をエスケープし直さないよう HTML エスケープは無効にします。
func encodeRecords(records []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
