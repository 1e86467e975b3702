package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// displayInfoMessage prints an informational message to the user.
func displayInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// displayFatal displays a fatal error message.
func displayFatal(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Fatal Error ")
	ErrorColorFG.Println(msg)
}

const icePostlude = `
This is likely a bug in the compiler.
Please open an issue on Github: github.com/quill-lang/quillc`

// displayICE displays an internal compiler error message.
func displayICE(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Internal Compiler Error ")
	ErrorColorFG.Println(msg)
	InfoColorFG.Println(icePostlude)
}

// -----------------------------------------------------------------------------

// displayCompileHeader displays the back-end configuration before generation
// begins.
func displayCompileHeader(target, strategy string) {
	fmt.Print("quillc ")
	InfoColorFG.Print("v" + QuillVersion)
	fmt.Print(" -- target: ")
	InfoColorFG.Print(target)
	fmt.Print(", strategy: ")
	InfoColorFG.Println(strategy)
}

// phaseSpinner stores the current phase spinner.
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Generating")

// displayBeginPhase displays the beginning of a generation phase.
func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", maxPhaseLength-len(phase)+2)
	phaseSpinner = pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))

	phaseSpinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	phaseSpinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner.Start(phaseText)
	phaseStartTime = time.Now()
}

// displayEndPhase displays the end of the current generation phase.
func displayEndPhase(success bool) {
	if phaseSpinner != nil {
		if success {
			phaseSpinner.Success(
				currentPhase+strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2),
				fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()),
			)
		} else {
			phaseSpinner.Fail(currentPhase + strings.Repeat(" ", maxPhaseLength-len(currentPhase)+2))
		}

		phaseSpinner = nil
	}
}

// displayCompilationFinished displays a generation finished message.
func displayCompilationFinished(outputPath string, numUnits int) {
	fmt.Print("\n")

	SuccessColorFG.Print("All done! ")

	switch numUnits {
	case 1:
		fmt.Print("(1 module -> ")
	default:
		fmt.Printf("(%d modules -> ", numUnits)
	}

	InfoColorFG.Print(outputPath)
	fmt.Println(")")
}
