package cli

import (
	"fmt"
	"strconv"

	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/display"
	"github.com/lydakis/coex/internal/httpheaders"
	"github.com/lydakis/coex/internal/jobs"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var (
	decimalFields = map[string]bool{
		coexpression.FieldPValue: true,
		coexpression.FieldCutOff: true,
	}
	intFields = map[string]bool{
		coexpression.FieldNumGenes:   true,
		coexpression.FieldNumModules: true,
	}
)

func submitCommand(op, name, usage string) *cli.Command {
	fields, _ := coexpression.FieldsFor(op)
	spec, _ := display.Lookup(op)

	flags := make([]cli.Flag, 0, len(fields)+2)
	for _, field := range fields {
		if intFields[field] {
			flags = append(flags, &cli.IntFlag{Name: flagName(field), Usage: spec.Hint(field)})
			continue
		}
		flags = append(flags, &cli.StringFlag{Name: flagName(field), Usage: spec.Hint(field)})
	}
	flags = append(flags,
		&cli.StringSliceFlag{
			Name:    "param",
			Aliases: []string{"p"},
			Usage:   "raw parameter as `KEY=VALUE`; repeatable",
		},
		&cli.BoolFlag{
			Name:  "no-record",
			Usage: "do not add the job ids to the local ledger",
		},
	)

	return &cli.Command{
		Name:         name,
		Usage:        usage,
		ArgsUsage:    "[JSON_OBJECT]",
		Description:  fmt.Sprintf("Parameters come from a JSON object (argument or stdin), --param pairs, and the typed flags, later sources winning.\nThe service method is %s.%s.", coexpression.ServiceName, op),
		Flags:        flags,
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			return runSubmit(c, op, fields)
		},
	}
}

func runSubmit(c *cli.Context, op string, fields []string) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	typed, err := typedParams(c, fields)
	if err != nil {
		return err
	}
	params, err := submitInput{
		positional: c.Args().Slice(),
		params:     c.StringSlice("param"),
		typed:      typed,
		stdin:      rootStdin,
		stdinIsTTY: stdinIsTTY(rootStdin),
	}.merge()
	if err != nil {
		return err
	}
	if missing := params.Missing(fields...); len(missing) > 0 {
		e.log.Warnw("parameters missing; the service may reject the job", "operation", op, "missing", missing)
	}

	client, err := e.client(c, e.cfg.CheckVersion)
	if err != nil {
		return err
	}

	ep := client.Endpoint()
	e.log.Debugw("submitting job",
		"operation", op,
		"url", ep.URL,
		"timeout", ep.Timeout,
		"headers", httpheaders.Redacted(ep.RequestHeaders()),
		"params", params,
	)
	jobIDs, err := client.Submit(c.Context, op, params)
	if err != nil {
		return err
	}
	e.log.Infow("job submitted", "operation", op, "job_ids", jobIDs)

	recordID := ""
	if !c.Bool("no-record") {
		rec, err := jobs.Put(jobs.Record{
			Operation: op,
			URL:       e.cfg.URL,
			Params:    params,
			JobIDs:    jobIDs,
		})
		if err != nil {
			e.log.Warnw("recording job ids failed", "error", err)
		} else {
			recordID = rec.ID
		}
	}

	if e.json {
		return e.printJSON(map[string]any{
			"operation": op,
			"job_ids":   jobIDs,
			"record":    recordID,
		})
	}
	for _, id := range jobIDs {
		fmt.Fprintln(e.stdout, id)
	}
	return nil
}

// typedParams reads the per-field flags the user actually set. Thresholds
// are normalized through decimal so "5e-2" and "0.050" both go out as
// "0.05".
func typedParams(c *cli.Context, fields []string) (coexpression.Params, error) {
	out := make(coexpression.Params)
	for _, field := range fields {
		name := flagName(field)
		if !c.IsSet(name) {
			continue
		}
		switch {
		case intFields[field]:
			out[field] = strconv.Itoa(c.Int(name))
		case decimalFields[field]:
			d, err := decimal.NewFromString(c.String(name))
			if err != nil {
				return nil, usageErrorf("--%s: %v", name, err)
			}
			out[field] = d.String()
		default:
			out[field] = c.String(name)
		}
	}
	return out, nil
}
