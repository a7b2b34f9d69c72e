// Command check_config validates lesson service config files without
// starting the service. It applies the same parsing, env overrides and
// validation the service uses at boot, so CI can catch a broken config
// before deploy.
package main

import (
	"fmt"
	"io"
	"os"

	"lessonforge/services/lesson/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.yaml> [more configs...]\n", os.Args[0])
		os.Exit(2)
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(paths []string, stdout, stderr io.Writer) int {
	code := 0
	for _, path := range paths {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(stderr, "FAIL %s: %v\n", path, err)
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "OK   %s: port=%s provider=%s model=%s budget=%d\n",
			path, cfg.Port, cfg.ProviderKind, cfg.ProviderModel, cfg.TokenBudget)
	}
	return code
}
