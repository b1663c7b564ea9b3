package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/password-gate/internal/config"
)

const (
	SessionCookieName = "pw_session"

	sessionKeyAuthenticated = "isAuthenticated"
	sessionKeyName          = "name"
	sessionKeyStartTime     = "startTime"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

// loadState はクッキーセッションから State を復元します。
func loadState(session sessions.Session) State {
	authenticated, _ := session.Get(sessionKeyAuthenticated).(bool)
	name, _ := session.Get(sessionKeyName).(string)
	state := State{
		Authenticated: authenticated,
		Name:          name,
		StartTime:     readUnixMilli(session.Get(sessionKeyStartTime)),
	}
	if !state.Authenticated {
		return State{}
	}
	return state
}

// storeState は State をクッキーセッションへ書き戻します（Save は呼び出し側）。
// gob で扱えるよう開始時刻は Unix ミリ秒で保存します。
func storeState(session sessions.Session, state State) {
	if !state.Authenticated {
		session.Delete(sessionKeyAuthenticated)
		session.Delete(sessionKeyName)
		session.Delete(sessionKeyStartTime)
		return
	}
	session.Set(sessionKeyAuthenticated, true)
	session.Set(sessionKeyName, state.Name)
	session.Set(sessionKeyStartTime, state.StartTime.UnixMilli())
}

// SessionOptions はセッションクッキーの属性を返します。
// release モードでは Secure を付けます。
func SessionOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	}
}

// destroySession はセッションを空にし、クッキーを失効させます。
// 失効用のクッキーは opts の属性を引き継ぎ、MaxAge だけを上書きします。
func destroySession(session sessions.Session, opts sessions.Options) error {
	session.Clear()
	opts.MaxAge = -1
	session.Options(opts)
	return session.Save()
}

func readUnixMilli(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.UnixMilli(t)
	case int:
		return time.UnixMilli(int64(t))
	case float64:
		return time.UnixMilli(int64(t))
	default:
		return time.Time{}
	}
}
