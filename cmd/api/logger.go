package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// newLogger は Gin のモードに合わせたロガーを作成します。
// release では JSON 形式、それ以外は開発向けのコンソール形式で出力します。
func newLogger(mode string) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch mode {
	case gin.ReleaseMode:
		logger, err = zap.NewProduction()
	case gin.TestMode:
		logger = zap.NewNop()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
