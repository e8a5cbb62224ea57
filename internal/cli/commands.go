package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lydakis/coex/internal/auth"
	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/config"
	"github.com/lydakis/coex/internal/display"
	"github.com/lydakis/coex/internal/jobs"
	"github.com/lydakis/coex/internal/jsonrpc"
	"github.com/lydakis/coex/internal/mcpserver"
	"github.com/lydakis/coex/internal/paths"
	"github.com/lydakis/coex/internal/skill"
	"github.com/urfave/cli/v2"
)

// commandMethods maps CLI command names to service methods.
var commandMethods = map[string]string{
	"filter-genes":   coexpression.OpFilterGenes,
	"coex-net-clust": coexpression.OpConstCoexNetClust,
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:         "version",
		Usage:        "print the version reported by the service",
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			client, err := e.client(c, e.cfg.CheckVersion)
			if err != nil {
				return err
			}
			v, err := client.Version(c.Context)
			if err != nil {
				return err
			}
			if e.json {
				return e.printJSON(map[string]string{
					"server": v,
					"client": coexpression.ClientVersion,
					"cli":    buildVersion,
				})
			}
			fmt.Fprintln(e.stdout, v)
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:         "check",
		Usage:        "check that the service version is compatible with this client",
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			client, err := e.client(c, false)
			if err != nil {
				return err
			}
			server, err := client.Version(c.Context)
			if err != nil {
				return err
			}

			warnings, checkErr := jsonrpc.CheckCompatibility(coexpression.ClientVersion, server)
			for _, w := range warnings {
				e.log.Warnw(w, "client_version", coexpression.ClientVersion, "server_version", server)
			}

			if e.json {
				out := map[string]any{
					"client":     coexpression.ClientVersion,
					"server":     server,
					"compatible": checkErr == nil,
					"warnings":   warnings,
				}
				if checkErr != nil {
					out["error"] = checkErr.Error()
				}
				if err := e.printJSON(out); err != nil {
					return err
				}
				return checkErr
			}
			if checkErr != nil {
				return checkErr
			}
			fmt.Fprintf(e.stdout, "compatible: client %s, server %s\n", coexpression.ClientVersion, server)
			return nil
		},
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:         "jobs",
		Usage:        "list locally recorded submissions, or show the one containing JOB_ID",
		ArgsUsage:    "[JOB_ID]",
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}

			if c.Args().Present() {
				id := c.Args().First()
				rec, ok, err := jobs.Find(id)
				if err != nil {
					return err
				}
				if !ok {
					return usageErrorf("no recorded submission contains job %q", id)
				}
				if e.json {
					return e.printJSON(rec)
				}
				return writeRecord(e, rec)
			}

			recs, err := jobs.List()
			if err != nil {
				return err
			}
			if e.json {
				if recs == nil {
					recs = []jobs.Record{}
				}
				return e.printJSON(recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(e.stdout, "No recorded submissions.")
				return nil
			}
			tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SUBMITTED\tOPERATION\tJOB IDS\tRECORD")
			for _, rec := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					rec.Submitted.Local().Format(time.DateTime), rec.Operation, strings.Join(rec.JobIDs, ","), rec.ID)
			}
			return tw.Flush()
		},
	}
}

func writeRecord(e *env, rec jobs.Record) error {
	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "record\t%s\n", rec.ID)
	fmt.Fprintf(tw, "operation\t%s\n", rec.Operation)
	fmt.Fprintf(tw, "submitted\t%s\n", rec.Submitted.Local().Format(time.RFC3339))
	if rec.URL != "" {
		fmt.Fprintf(tw, "url\t%s\n", rec.URL)
	}
	fmt.Fprintf(tw, "job ids\t%s\n", strings.Join(rec.JobIDs, ", "))
	for _, key := range sortedKeys(rec.Params) {
		fmt.Fprintf(tw, "  %s\t%s\n", key, rec.Params[key])
	}
	return tw.Flush()
}

func describeCommand() *cli.Command {
	return &cli.Command{
		Name:         "describe",
		Usage:        "show display metadata for a method, or list methods",
		ArgsUsage:    "[METHOD]",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "read the display document from `PATH` instead of the built-in one",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}

			var spec *display.Spec
			switch {
			case c.IsSet("file"):
				spec, err = display.LoadFile(c.String("file"))
			case c.Args().Present():
				method := c.Args().First()
				if mapped, ok := commandMethods[method]; ok {
					method = mapped
				}
				spec, err = display.Lookup(method)
				if err != nil {
					err = &usageError{err: err}
				}
			default:
				methods := display.Methods()
				if e.json {
					return e.printJSON(methods)
				}
				for _, m := range methods {
					fmt.Fprintln(e.stdout, m)
				}
				return nil
			}
			if err != nil {
				return err
			}

			if e.json {
				return e.printJSON(spec)
			}
			return writeSpec(e, spec)
		},
	}
}

func writeSpec(e *env, spec *display.Spec) error {
	fmt.Fprintln(e.stdout, spec.Name)
	if spec.Tooltip != "" {
		fmt.Fprintln(e.stdout, spec.Tooltip)
	}

	if len(spec.Parameters) > 0 {
		fmt.Fprintln(e.stdout)
		fmt.Fprintln(e.stdout, "Parameters:")
		tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
		for _, field := range sortedKeys(spec.Parameters) {
			fmt.Fprintf(tw, "  --%s\t%s\t%s\n", flagName(field), spec.Label(field), spec.Hint(field))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if next := spec.Suggestions.Methods.Next; len(next) > 0 {
		fmt.Fprintln(e.stdout)
		fmt.Fprintf(e.stdout, "Next: %s\n", strings.Join(next, ", "))
	}
	if spec.Description != "" {
		fmt.Fprintln(e.stdout)
		fmt.Fprintln(e.stdout, spec.Description)
	}
	return nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:         "login",
		Usage:        "store an auth token for later calls",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "`TOKEN` to store; read from stdin when omitted",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}

			token := strings.TrimSpace(c.String("token"))
			if token == "" {
				line, err := bufio.NewReader(rootStdin).ReadString('\n')
				if err != nil && line == "" {
					return usageErrorf("no token given: pass --token or pipe it on stdin")
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return usageErrorf("no token given: pass --token or pipe it on stdin")
			}

			path := e.cfg.TokenFile
			if path == "" {
				path = paths.TokenFile()
			}
			if err := auth.SaveToken(path, token); err != nil {
				return err
			}
			e.log.Debugw("token saved", "path", path)
			fmt.Fprintf(e.stdout, "Token saved to %s\n", path)
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:         "init",
		Usage:        "write or update the config file",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "service `URL`"},
			&cli.StringFlag{Name: "timeout", Usage: "per-call timeout, seconds or a Go duration"},
			&cli.BoolFlag{Name: "check-version", Usage: "check server compatibility on every call"},
			&cli.StringFlag{Name: "token-file", Usage: "token file `PATH`"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			cfg, err := config.LoadForEditFrom(path)
			if err != nil {
				return err
			}

			if c.IsSet("url") {
				cfg.URL = strings.TrimSpace(c.String("url"))
			}
			if c.IsSet("timeout") {
				cfg.Timeout = normalizeTimeout(c.String("timeout"))
			}
			if c.IsSet("check-version") {
				cfg.CheckVersion = c.Bool("check-version")
			}
			if c.IsSet("token-file") {
				cfg.TokenFile = c.String("token-file")
			}

			if err := config.RequireURL(cfg); err != nil {
				return &usageError{err: err}
			}
			if err := config.Validate(cfg); err != nil {
				return &usageError{err: fmt.Errorf("invalid config: %w", err)}
			}
			if err := config.SaveTo(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(rootStdout, "Wrote %s\n", path)
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:         "mcp",
		Usage:        "serve the operations as MCP tools over stdio",
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			client, err := e.client(c, e.cfg.CheckVersion)
			if err != nil {
				return err
			}

			s := mcpserver.New(client, buildVersion, mcpserver.Options{
				OnSubmit: func(op string, params coexpression.Params, jobIDs []string) {
					e.log.Infow("job submitted", "operation", op, "job_ids", jobIDs)
					if _, err := jobs.Put(jobs.Record{
						Operation: op,
						URL:       e.cfg.URL,
						Params:    params,
						JobIDs:    jobIDs,
					}); err != nil {
						e.log.Warnw("recording job ids failed", "error", err)
					}
				},
			})
			e.log.Infow("serving MCP over stdio", "url", e.cfg.URL)
			if err := mcpserver.Serve(s); err != nil {
				return fmt.Errorf("serving MCP: %w", err)
			}
			return nil
		},
	}
}

func skillCommand() *cli.Command {
	return &cli.Command{
		Name:         "skill",
		Usage:        "manage the coex agent skill",
		OnUsageError: onUsageError,
		Subcommands: []*cli.Command{
			{
				Name:         "install",
				Usage:        "write SKILL.md for coding agents",
				OnUsageError: onUsageError,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data-agent-dir", Usage: "shared agent skills `DIR`"},
					&cli.StringFlag{Name: "claude-dir", Usage: "Claude Code skills `DIR`"},
					&cli.BoolFlag{Name: "skip-claude", Usage: "only write the shared copy"},
				},
				Action: func(c *cli.Context) error {
					result, err := skill.Install(skill.InstallOptions{
						DataAgentDir: c.String("data-agent-dir"),
						ClaudeDir:    c.String("claude-dir"),
						SkipClaude:   c.Bool("skip-claude"),
					})
					if err != nil {
						return err
					}
					for _, file := range result.Files {
						fmt.Fprintf(rootStdout, "Installed %s\n", file)
					}
					return nil
				},
			},
		},
	}
}
