package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wippyai/fiber-runtime/runtime"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a core WASM module already carrying the asyncify control exports")
		mainEntry   = flag.String("main", "run_main", "Export the main fiber runs")
		trampoline  = flag.String("trampoline", "", "Export spawned fibers run through (defaults to -main)")
		preopenFlag = flag.String("preopens", "", "Preopened directories (/guest:/host,/guest2:/host2)")
		interactive = flag.Bool("i", false, "Interactive mode: step the fiber driver one dispatch at a time")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-main run_main] [-trampoline name] [-preopens /guest:/host,...]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	cfg := runtime.ProgramConfig{
		Preopens:   parsePreopens(*preopenFlag),
		MainEntry:  *mainEntry,
		Trampoline: *trampoline,
	}

	if *interactive {
		if err := runInteractive(*wasmFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	status, err := run(*wasmFile, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(status))
}

func parsePreopens(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, mapping := range strings.Split(s, ",") {
		parts := strings.SplitN(mapping, ":", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

func run(wasmFile string, cfg runtime.ProgramConfig) (uint32, error) {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.New(ctx, &runtime.Config{})
	if err != nil {
		return 0, fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	prog, err := rt.LoadFiberModule(ctx, data, cfg)
	if err != nil {
		return 0, fmt.Errorf("load fiber module: %w", err)
	}
	defer prog.Close(ctx)

	fmt.Fprintf(os.Stderr, "Running %s (main=%s)...\n", wasmFile, cfg.MainEntry)
	return prog.Run(ctx)
}
