package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/clstress/internal/cl"
	"github.com/cwbudde/clstress/internal/hello"
	"github.com/cwbudde/clstress/internal/walker"
)

// newDriver is replaced in tests.
var newDriver = cl.NewDriver

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return reportError(stderr, err)
	}
	return 0
}

// reportError is the single place where failures become stderr text.
func reportError(w io.Writer, err error) int {
	var (
		buildErr *hello.BuildError
		clErr    *cl.Error
	)

	if errors.As(err, &buildErr) {
		fmt.Fprintf(w, "OpenCL compilation error\n%s\n", buildErr.Log)
	}

	switch {
	case errors.Is(err, walker.ErrNoPlatforms):
		fmt.Fprintln(w, "No platforms found.")
	case errors.As(err, &clErr):
		fmt.Fprintf(w, "OpenCL error: %v (%d)\n", err, clErr.Code)
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return 1
}
