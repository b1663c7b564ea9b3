package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 画面遷移先のパスです。
const (
	HomePath      = "/"
	LoginPath     = "/protected/login"
	ProtectedPath = "/protected"
	LoggedOutPath = "/?loggedOut=true"
)

// テンプレート名です。
const (
	TemplateIndex     = "index.html"
	TemplateLogin     = "login.html"
	TemplateProtected = "protected.html"
)

const homeTitle = "Welcome to Password Web App"

// Recorder は終了したセッションを記録します。
// 記録の失敗はログアウトを妨げないため、返されたエラーは無視されます。
type Recorder interface {
	Record(ctx context.Context, summary Summary) error
}

// Handler はログイン・ログアウト周りの画面ハンドラーです。
type Handler struct {
	manager  *Manager
	recorder Recorder
	logger   *zap.SugaredLogger
}

// NewHandler は Handler を作成します。recorder が nil の場合は記録を行いません。
func NewHandler(manager *Manager, recorder Recorder, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		manager:  manager,
		recorder: recorder,
		logger:   logger,
	}
}

// Home は GET / のハンドラーです。
func (h *Handler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, TemplateIndex, gin.H{
		"title":     homeTitle,
		"loggedOut": c.Query("loggedOut") == "true",
	})
}

// LoginPage は GET /protected/login のハンドラーです。
func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, TemplateLogin, gin.H{"error": nil})
}

// Login は POST /protected/login のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	name := c.PostForm("name")
	password := c.PostForm("password")

	session := sessions.Default(c)
	state := loadState(session)

	if err := h.manager.Authenticate(&state, name, password); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			h.logger.Infow("login rejected", "reason", vErr.Reason, "ip", c.ClientIP())
			c.HTML(http.StatusOK, TemplateLogin, gin.H{"error": vErr.Message})
			return
		}
		h.logger.Errorw("login failed", "error", err)
		c.HTML(http.StatusInternalServerError, TemplateLogin, gin.H{"error": "Login failed. Please try again."})
		return
	}

	storeState(session, state)
	if err := session.Save(); err != nil {
		h.logger.Errorw("failed to save session", "error", err)
		c.HTML(http.StatusInternalServerError, TemplateLogin, gin.H{"error": "Login failed. Please try again."})
		return
	}

	h.logger.Infow("login succeeded", "name", state.Name)
	c.Redirect(http.StatusFound, ProtectedPath)
}

// Protected は GET /protected のハンドラーです。RequireLogin の後に置きます。
func (h *Handler) Protected(c *gin.Context) {
	c.HTML(http.StatusOK, TemplateProtected, gin.H{"name": c.GetString(ContextUserKey)})
}

// Logout は GET /logout のハンドラーです。
// セッションを記録してから破棄し、記録や破棄に失敗してもリダイレクトは行います。
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	state := loadState(session)

	summary, err := h.manager.EndSession(&state)
	if err != nil {
		c.Redirect(http.StatusFound, HomePath)
		return
	}

	if h.recorder != nil {
		// クライアント切断でログ記録が中断されないようにする
		ctx := context.WithoutCancel(c.Request.Context())
		_ = h.recorder.Record(ctx, summary)
	}

	if err := destroySession(session, SessionOptions(h.manager.cfg)); err != nil {
		h.logger.Errorw("error during logout", "error", err)
	}

	h.logger.Infow("logout",
		"name", summary.Name,
		"hours", summary.Hours,
		"minutes", summary.Minutes,
		"seconds", summary.Seconds,
	)
	c.Redirect(http.StatusFound, LoggedOutPath)
}
