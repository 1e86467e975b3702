package report

import (
	"fmt"
	"os"
)

// ReportICE reports an internal compiler error.  These are errors that
// specifically result from a bug or unexpected condition occurring within the
// compiler: they are not intended to ever happen.  These errors are always
// displayed regardless of log level.
func ReportICE(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	displayICE(fmt.Sprintf(message, args...))

	os.Exit(-1)
}

// ReportFatal reports a fatal error.  These are errors that should cause all
// compilation to stop immediately.  However, they are expected errors that
// generally result from invalid configuration or corrupted external state of
// some form: a missing module manifest, a linked bundle that can't be read, a
// tampered incremental cache, etc.
func ReportFatal(message string, args ...interface{}) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// -----------------------------------------------------------------------------

// DisplayInfoMessage displays a tagged informational message to the user.
func DisplayInfoMessage(tag, msg string) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayInfoMessage(tag, msg)
	}
}

// ReportCompileHeader reports the pre-generation header: information about the
// back end's current configuration (version, target, strategy).
func ReportCompileHeader(target, strategy string) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayCompileHeader(target, strategy)
	}
}

// ReportBeginPhase reports the beginning of a generation phase.
func ReportBeginPhase(phase string) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayBeginPhase(phase)
	}
}

// ReportEndPhase reports the end of the current generation phase if one is in
// progress.
func ReportEndPhase(success bool) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayEndPhase(success)
	}
}

// ReportCompilationFinished reports the concluding message of generation: how
// many output modules were produced and where.
func ReportCompilationFinished(outputPath string, numUnits int) {
	if rep.logLevel == LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayCompilationFinished(outputPath, numUnits)
	}
}
