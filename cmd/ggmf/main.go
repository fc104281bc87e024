package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	st := &state{}
	var (
		cfgPath  string
		logLevel string
	)
	return &cli.Command{
		Name:  "ggmf",
		Usage: "Inspect, pack and convert GGMF tensor containers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml", Destination: &cfgPath},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Destination: &logLevel},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return ctx, err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log, err := newLogger(cmd.Root().ErrWriter, cfg.LogLevel)
			if err != nil {
				return ctx, err
			}
			st.cfg = cfg
			st.log = log
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(st),
			validateCmd(st),
			verifyCmd(st),
			unpackCmd(st),
			packCmd(st),
			rewriteCmd(st),
		},
	}
}
