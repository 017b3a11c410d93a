package main

import (
	"context"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-visual-translator/internal/logger"
)

// runDesktop opens a native window over the HTTP API. Every request of the
// webview, the index page included, goes to the same handler as serve.
func runDesktop(app *App) error {
	err := wails.Run(&options.App{
		Title:  "PDF 可视化翻译",
		Width:  1280,
		Height: 860,
		AssetServer: &assetserver.Options{
			Handler: app.server.Handler(),
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		OnBeforeClose: func(ctx context.Context) (prevent bool) {
			if _, err := app.sessions.Current(); err != nil {
				return false
			}
			result, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
				Type:          runtime.QuestionDialog,
				Title:         "确认退出",
				Message:       "当前有打开的翻译会话，已保存的译文不会丢失。确定要退出吗？",
				Buttons:       []string{"取消", "退出"},
				DefaultButton: "取消",
				CancelButton:  "取消",
			})
			if err != nil {
				return false
			}
			return result == "取消"
		},
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logger.Error("desktop window failed", err)
	}
	return err
}
