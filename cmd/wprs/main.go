package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aihub/wpredisearch/app/bootstrap"
	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/search"
	"go.uber.org/dig"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliDeps struct {
	dig.In

	Manager  *index.Manager
	Runner   *index.Runner
	Features *features.Registry
	Search   *search.Service
	Live     *features.LiveSearch
	Health   *database.HealthChecker
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	if _, ok := commands[args[0]]; !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Init(bootstrap.Options{Output: stdout})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	var c *cli
	err = app.Container.Invoke(func(d cliDeps) {
		c = &cli{
			manager:  d.Manager,
			runner:   d.Runner,
			features: d.Features,
			search:   d.Search,
			live:     d.Live,
			health:   d.Health,
			out:      stdout,
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := c.execute(ctx, args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
