//go:build windows

package cli

import "os"

// На Windows управляющих сигналов нет: цикл запускает команда sync
var controlSignals = map[os.Signal]command{}
