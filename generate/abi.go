package generate

import (
	"github.com/llir/llvm/ir/enum"

	"quillc/mods"
)

// ABI selects which of the two target calling-convention profiles generated
// functions use.  Exactly one variant is chosen per run, at driver start, and
// shared read-only by every parallel emitter invocation.
type ABI int

// The two ABI variants.
const (
	ABISysV  = ABI(iota) // Unix-like object and calling convention profile.
	ABIWin64             // Windows-like object and calling convention profile.
)

// SelectABI chooses the ABI variant for the configured target platform.
func SelectABI(targetOS int) ABI {
	if targetOS == mods.OSWindows {
		return ABIWin64
	}

	return ABISysV
}

func (abi ABI) String() string {
	if abi == ABIWin64 {
		return "win64"
	}

	return "sysv"
}

// callingConv returns the calling convention applied to externally visible
// functions under this ABI.
func (abi ABI) callingConv() enum.CallingConv {
	if abi == ABIWin64 {
		return enum.CallingConvWin64
	}

	return enum.CallingConvC
}
