// Package auth は共有パスワードによるログインとセッション管理を提供します。
package auth

import (
	"crypto/subtle"
	"errors"
	"regexp"
	"time"

	"github.com/yourusername/password-gate/internal/config"
)

// 検証失敗の理由です。
const (
	ReasonNameFormat  = "name format"
	ReasonBadPassword = "bad password"
)

const (
	nameFormatMessage  = "Name must be alphanumeric, up to 16 characters."
	badPasswordMessage = "Invalid password."
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9 ]{1,16}$`)

// ErrNoActiveSession はログアウト時に記録すべきセッションが無いことを表します。
var ErrNoActiveSession = errors.New("no active session")

// ValidationError はログイン入力の検証エラーです。Message はそのまま画面に表示できます。
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid credentials: " + e.Reason
}

// State はクライアントごとのセッションに保持される認証状態です。
// Name と StartTime は Authenticated が true のときだけ設定されます。
type State struct {
	Authenticated bool
	Name          string
	StartTime     time.Time
}

// Decision は Guard の判定結果です。
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Summary は終了したセッションの内容です。
type Summary struct {
	Name    string
	Start   time.Time
	End     time.Time
	Hours   int
	Minutes int
	Seconds int
}

// Manager は認証処理をまとめた構造体です。
type Manager struct {
	cfg *config.Config
	now func() time.Time
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg: cfg,
		now: time.Now,
	}
}

// Authenticate は名前とパスワードを検証し、成功した場合だけ state を更新します。
// 名前の形式を先に検証し、失敗した時点でパスワードは見ません。
func (m *Manager) Authenticate(state *State, name, password string) error {
	if !namePattern.MatchString(name) {
		return &ValidationError{Reason: ReasonNameFormat, Message: nameFormatMessage}
	}
	if !m.verifyPassword(password) {
		return &ValidationError{Reason: ReasonBadPassword, Message: badPasswordMessage}
	}

	*state = State{
		Authenticated: true,
		Name:          name,
		StartTime:     m.clock(),
	}
	return nil
}

// Guard は保護ページへのアクセス可否を返します。
func (m *Manager) Guard(state State) Decision {
	if state.Authenticated {
		return Allow
	}
	return Deny
}

// EndSession はセッションを終了して Summary を返します。
// 開始時刻が無い場合は state を変更せず ErrNoActiveSession を返します。
func (m *Manager) EndSession(state *State) (Summary, error) {
	if state == nil || state.StartTime.IsZero() {
		return Summary{}, ErrNoActiveSession
	}

	end := m.clock()
	hours, minutes, seconds := splitDuration(end.Sub(state.StartTime))
	summary := Summary{
		Name:    state.Name,
		Start:   state.StartTime,
		End:     end,
		Hours:   hours,
		Minutes: minutes,
		Seconds: seconds,
	}

	*state = State{}
	return summary, nil
}

func (m *Manager) verifyPassword(password string) bool {
	secret := m.cfg.AdminPassword
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

// clock はセッションクッキーと同じミリ秒精度に揃えた現在時刻を返します。
func (m *Manager) clock() time.Time {
	return m.now().Truncate(time.Millisecond)
}

// splitDuration は経過時間を時・分・秒に分解します。
// 既存のログ形式に合わせ、時は24で割った余りになります（1日以上は折り返す）。
func splitDuration(d time.Duration) (hours, minutes, seconds int) {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours = int(total / 3600 % 24)
	minutes = int(total / 60 % 60)
	seconds = int(total % 60)
	return hours, minutes, seconds
}
