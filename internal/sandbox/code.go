package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// runCode evaluates a Go snippet in a fresh interpreter and captures its
// output. The snippet never touches the sandbox filesystem or the network;
// it is for quick calculations and prototyping logic.
func runCode(ctx context.Context, source string) (string, bool) {
	runCtx, cancel := context.WithTimeout(ctx, defaultCodeTimeout)
	defer cancel()

	var buf bytes.Buffer
	i := interp.New(interp.Options{Stdout: &buf, Stderr: &buf})
	if err := i.Use(stdlib.Symbols); err != nil {
		return codeResult("", err), false
	}

	if !strings.Contains(source, "package ") {
		source = "package main\n\n" + source
	}

	type evalOut struct {
		err error
	}
	done := make(chan evalOut, 1)
	go func() {
		// Eval of a main package already runs its main function; a second
		// invocation would execute the program twice.
		_, err := i.Eval(source)
		done <- evalOut{err: err}
	}()

	select {
	case <-runCtx.Done():
		return codeResult(buf.String(), fmt.Errorf("code execution timed out")), false
	case out := <-done:
		return codeResult(buf.String(), out.err), out.err == nil
	}
}

func codeResult(output string, err error) string {
	payload := map[string]any{"output": output}
	if err != nil {
		payload["error"] = err.Error()
	}
	out, _ := json.Marshal(payload)
	return string(out)
}
