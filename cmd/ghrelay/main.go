package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/breml/rootcerts"
	"github.com/goccy/go-json"
	"github.com/jgivc/ghrelay/internal/app"
	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const (
	defaultConfigFileName = "config.yml"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "ghrelay",
		Usage: "Caching GitHub relay for release downloads, backups and flag catalogs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigFileName,
				Usage:   "Path to config file",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the http server",
				Action: serve,
			},
			flagsCommand(),
			downloadsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	a := app.New(c.String("config"))
	a.Start()

	sig := make(chan os.Signal, 1)
	defer close(sig)
	done := make(chan struct{})

	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer close(done)

		for s := range sig {
			switch s {
			case syscall.SIGUSR1:
				go a.Index()
			case syscall.SIGUSR2:
				go a.Dump()
			case syscall.SIGTERM, syscall.SIGINT:
				fmt.Println("Received termination signal. Shutting down...")

				return
			}
		}
	}()

	<-done
	signal.Stop(sig)
	a.Stop()
	fmt.Println("done")

	return nil
}

func flagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "flags",
		Usage: "Inspect the flag catalog",
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "Write the catalog as yaml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file, defaults to flags.dump_filename from the config",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, err := initApp(ctx, c)
					if err != nil {
						return err
					}
					defer a.Close()

					out := c.String("out")
					if out == "" {
						out = a.Config().Flags.DumpFileName
					}

					return a.DumpFlags(ctx, out)
				},
			},
			{
				Name:      "search",
				Usage:     "Search flags by title, description, tags, author, id or flag name",
				ArgsUsage: "[query]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Limit the search to one category",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					a, err := initApp(ctx, c)
					if err != nil {
						return err
					}
					defer a.Close()

					return printJSON(a.SearchFlags(ctx, c.Args().First(), c.String("category")))
				},
			},
		},
	}
}

func downloadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "downloads",
		Usage: "Show which APKs to download",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "arch",
				Usage: "Device architecture, 32 or 64",
			},
			&cli.StringFlag{
				Name:  "version",
				Usage: "Release tag or title",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := initApp(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.Downloads(ctx, entity.ParseArch(c.String("arch")), c.String("version"))
			if err != nil {
				return err
			}

			return printJSON(view)
		},
	}
}

func initApp(ctx context.Context, c *cli.Command) (*app.App, error) {
	a := app.New(c.String("config"))
	if err := a.Init(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode output: %w", err)
	}

	fmt.Println(string(data))

	return nil
}
