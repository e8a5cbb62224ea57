package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lydakis/coex/internal/auth"
	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/config"
	"github.com/lydakis/coex/internal/httpheaders"
	"github.com/lydakis/coex/internal/logging"
	"github.com/lydakis/coex/internal/paths"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp().RunContext(ctx, append([]string{"coex"}, args...))
	if err != nil {
		fmt.Fprintf(rootStderr, "coex: %v\n", err)
	}
	return exitCode(err)
}

func newApp() *cli.App {
	return &cli.App{
		Name:                      "coex",
		Usage:                     "submit gene co-expression jobs to the CoExpression service",
		HideVersion:               true,
		Reader:                    rootStdin,
		Writer:                    rootStdout,
		ErrWriter:                 rootStderr,
		DisableSliceFlagSeparator: true,
		ExitErrHandler:            func(*cli.Context, error) {},
		OnUsageError:              onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "config file `PATH`",
				Value: paths.ConfigFile(),
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "CoExpression service `URL` (overrides " + config.EnvURL + ")",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "auth `TOKEN` (overrides " + auth.EnvToken + " and the token file)",
			},
			&cli.StringFlag{
				Name:  "timeout",
				Usage: "per-call timeout, seconds or a Go duration (default 1800s)",
			},
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   "extra request header as `NAME=VALUE`, overriding config headers; repeatable",
			},
			&cli.BoolFlag{
				Name:  "check-version",
				Usage: "verify server compatibility before calling",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (console, logfmt, json)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print machine-readable JSON output",
			},
		},
		Commands: []*cli.Command{
			submitCommand(coexpression.OpFilterGenes, "filter-genes",
				"filter an expression matrix down to differentially expressed genes"),
			submitCommand(coexpression.OpConstCoexNetClust, "coex-net-clust",
				"build a co-expression network and cluster it into modules"),
			versionCommand(),
			checkCommand(),
			jobsCommand(),
			describeCommand(),
			loginCommand(),
			initCommand(),
			mcpCommand(),
			skillCommand(),
		},
		Action: func(c *cli.Context) error {
			if c.Args().Present() {
				return usageErrorf("unknown command %q", c.Args().First())
			}
			return cli.ShowAppHelp(c)
		},
	}
}

func onUsageError(_ *cli.Context, err error, _ bool) error {
	return &usageError{err: err}
}

// env is the per-invocation state shared by commands.
type env struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	stdout io.Writer
	json   bool
}

func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(c, cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, &usageError{err: fmt.Errorf("invalid config: %w", err)}
	}

	lg, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: rootStderr,
	})
	if err != nil {
		return nil, &usageError{err: err}
	}

	return &env{
		cfg:    cfg,
		log:    lg,
		stdout: rootStdout,
		json:   c.Bool("json"),
	}, nil
}

func applyFlagOverrides(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("url") {
		cfg.URL = strings.TrimSpace(c.String("url"))
	}
	if c.IsSet("timeout") {
		cfg.Timeout = normalizeTimeout(c.String("timeout"))
	}
	if c.IsSet("check-version") {
		cfg.CheckVersion = c.Bool("check-version")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("header") {
		headers, err := parseHeaders(c.StringSlice("header"))
		if err != nil {
			return err
		}
		cfg.Headers = httpheaders.Merge(cfg.Headers, headers, true)
	}
	return nil
}

// normalizeTimeout accepts bare seconds like COEX_TIMEOUT does.
func normalizeTimeout(raw string) string {
	raw = strings.TrimSpace(raw)
	if _, err := strconv.Atoi(raw); err == nil {
		return raw + "s"
	}
	return raw
}

func (e *env) client(c *cli.Context, checkVersion bool) (*coexpression.Client, error) {
	if err := config.RequireURL(e.cfg); err != nil {
		return nil, &usageError{err: err}
	}
	token, err := auth.Resolve(auth.Source{
		Token:     c.String("token"),
		TokenFile: e.cfg.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	timeout, err := e.cfg.RequestTimeout()
	if err != nil {
		return nil, &usageError{err: err}
	}

	return coexpression.New(c.Context, coexpression.Options{
		URL:          e.cfg.URL,
		Token:        token,
		Timeout:      timeout,
		Headers:      e.cfg.Headers,
		CheckVersion: checkVersion,
		Warn: func(msg string) {
			e.log.Warnw(msg, "client_version", coexpression.ClientVersion)
		},
	})
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
