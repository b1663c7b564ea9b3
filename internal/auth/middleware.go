package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireLogin は未ログインのリクエストをログイン画面へリダイレクトするミドルウェアを返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := loadState(sessions.Default(c))
		if m.Guard(state) == Deny {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, state.Name)
		c.Next()
	}
}
