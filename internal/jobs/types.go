package jobs

import "github.com/yourusername/password-gate/internal/loginlog"

const (
	taskTypeAppend = "loginlog:append"
	queueName      = "loginlog"
)

// TaskPayload はログイン履歴追記ジョブのペイロードです。
type TaskPayload struct {
	Entry loginlog.Entry `json:"entry"`
}
