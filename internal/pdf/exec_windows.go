//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

// hideConsoleWindow 桌面模式下调用 pdftoppm 时不弹出命令行窗口
func hideConsoleWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
