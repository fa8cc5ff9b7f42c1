package process

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogFateShareSupport logs a warning when this platform cannot guarantee parent-death
// signalling. ShutdownAll remains the safety net either way, this is purely diagnostic.
func LogFateShareSupport(logger log.Logger) {
	if fateShareSupported() {
		level.Info(logger).Log("msg", "backend fate-sharing supported", "mechanism", "PR_SET_PDEATHSIG")
		return
	}
	level.Warn(logger).Log("msg", "backend fate-sharing not supported on this platform; relying on shutdown_all at exit")
}
