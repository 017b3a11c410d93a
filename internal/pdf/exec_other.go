//go:build !windows

package pdf

import "os/exec"

// hideConsoleWindow 非 Windows 平台无需处理
func hideConsoleWindow(cmd *exec.Cmd) {}
