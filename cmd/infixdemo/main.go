package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/infix"
)

const versionString = "infixdemo 0.1.0"

func main() {
	verbose := flag.Bool("v", false, "verbose logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	showPlatform := flag.Bool("platform", false, "print platform capability info and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString)
		return
	}
	if *verbose {
		infix.VerboseMode = true
	}
	if *showPlatform {
		p := infix.Platform()
		fmt.Printf("os=%s arch=%s abi=%s jit=%v pointer=%d\n", p.OS, p.Arch, p.ABI, p.JITBacked, p.PointerSize)
		return
	}

	if err := runDemo(); err != nil {
		fmt.Fprintln(os.Stderr, "infixdemo:", err)
		os.Exit(1)
	}
}

// runDemo exercises the public surface of package infix against the C
// library every process already has loaded: a scalar forward call and
// a two-argument floating-point forward call.
func runDemo() error {
	libc, err := infix.LoadLibrary("")
	if err != nil {
		return fmt.Errorf("load libc: %w", err)
	}

	abs, err := infix.Bind(libc, "abs", "i;i")
	if err != nil {
		return fmt.Errorf("bind abs: %w", err)
	}
	defer abs.Release()

	result, err := abs.Call(int32(-7))
	if err != nil {
		return fmt.Errorf("call abs(-7): %w", err)
	}
	fmt.Printf("abs(-7) = %v\n", result)

	hypot, err := infix.Bind(libc, "hypot", "d,d;d")
	if err != nil {
		return fmt.Errorf("bind hypot: %w", err)
	}
	defer hypot.Release()

	result, err = hypot.Call(3.0, 4.0)
	if err != nil {
		return fmt.Errorf("call hypot(3,4): %w", err)
	}
	fmt.Printf("hypot(3, 4) = %v\n", result)

	return nil
}
