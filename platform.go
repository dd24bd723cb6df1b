package infix

import (
	"runtime"

	"github.com/xyproto/infix/internal/abi"
)

// PlatformInfo reports the handful of facts the marshalling and ABI
// layers themselves need to make decisions — a scoped-down, read-only
// capability query, deliberately not a general platform-introspection
// API.
type PlatformInfo struct {
	OS         string
	Arch       string
	PointerSize int
	LittleEndian bool
	ABI        abi.ABI
	JITBacked  bool // whether GOARCH has a trampoline emitter (amd64, arm64); a Microsoft x64 ABI still fails with ErrUnsupportedABI
}

// Platform reports the resolved platform capabilities this process
// will use for Bind/Callback/Pin.
func Platform() PlatformInfo {
	a := currentABI()
	return PlatformInfo{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		PointerSize:  8,
		LittleEndian: true,
		ABI:          a,
		JITBacked:    runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64",
	}
}

// currentABI resolves the call-plan classifier to use: an explicit
// INFIX_ABI override (config.go) takes precedence over the platform
// default, which lets a classify-only cross-ABI test run on any host.
func currentABI() abi.ABI {
	switch preferredABIOverride {
	case "sysv", "sysvamd64", "SysV":
		return abi.SysVAMD64
	case "win64", "microsoft", "ms":
		return abi.MicrosoftX64
	case "aapcs64", "arm64", "aarch64":
		return abi.AAPCS64
	}
	if runtime.GOARCH == "arm64" {
		return abi.AAPCS64
	}
	if runtime.GOOS == "windows" {
		return abi.MicrosoftX64
	}
	return abi.SysVAMD64
}
