// Command embymerged runs the embymerge webhook daemon with the default
// configuration path, for service managers that expect a dedicated binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"embymerge/internal/config"
	"embymerge/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("EMBYMERGE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
