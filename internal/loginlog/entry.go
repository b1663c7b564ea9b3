// Package loginlog はログアウト時のセッション記録を JSON 配列ファイルに追記します。
package loginlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// isoLayout は JavaScript の Date.prototype.toISOString と同じ形式です。
const isoLayout = "2006-01-02T15:04:05.000Z"

// Timestamp は UTC・ミリ秒精度の ISO 8601 文字列として JSON 化される時刻です。
type Timestamp struct {
	time.Time
}

// NewTimestamp は t をミリ秒に切り捨てた Timestamp を返します。
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// String は ISO 8601 表現を返します。
func (t Timestamp) String() string {
	return t.UTC().Format(isoLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// SessionTimes は1回のセッションの開始・終了と経過時間です。
type SessionTimes struct {
	Start   Timestamp `json:"start"`
	End     Timestamp `json:"end"`
	Hours   int       `json:"hours"`
	Minutes int       `json:"minutes"`
	Seconds int       `json:"seconds"`
}

// Entry はログイン履歴ファイルの1要素です。作成後に書き換えられることはありません。
type Entry struct {
	Time    Timestamp    `json:"time"`
	Name    string       `json:"name"`
	Session SessionTimes `json:"session"`
}

// NewEntry は終了したセッションから Entry を組み立てます。
func NewEntry(name string, start, end time.Time, hours, minutes, seconds int) Entry {
	return Entry{
		Time: NewTimestamp(start),
		Name: name,
		Session: SessionTimes{
			Start:   NewTimestamp(start),
			End:     NewTimestamp(end),
			Hours:   hours,
			Minutes: minutes,
			Seconds: seconds,
		},
	}
}
