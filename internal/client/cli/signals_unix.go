//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// controlSignals SIGUSR1 запускает цикл, SIGHUP перечитывает токен,
// SIGCONT приходит после fg или возобновления остановленного процесса
var controlSignals = map[os.Signal]command{
	syscall.SIGUSR1: commandSync,
	syscall.SIGCONT: commandResume,
	syscall.SIGHUP:  commandReload,
}
