package skill

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/display"
)

var skillTmpl = template.Must(template.New("SKILL.md").Funcs(template.FuncMap{
	"flag": func(field string) string { return strings.ReplaceAll(field, "_", "-") },
}).Parse(`---
name: {{.Name}}
description: Submit gene co-expression jobs (gene filtering, network construction and clustering) to the CoExpression service with the coex CLI.
---

# coex

Every command is one authenticated call; jobs run server-side and the CLI
prints the queued job ids, one per line. Add --json before the command for
machine-readable output.

Authenticate once with ` + "`coex login --token <TOKEN>`" + ` or set KB_AUTH_TOKEN.
Point at the service with ` + "`coex init --url <URL>`" + ` or COEX_URL.
{{range .Methods}}
## coex {{.Command}}

{{.Tooltip}}

| Flag | Meaning |
|---|---|
{{- $spec := .Spec}}
{{- range .Fields}}
| --{{flag .}} | {{$spec.Hint .}} |
{{- end}}

Parameters may also be given as one JSON object argument or as --param key=value.
{{end}}
## Exit codes

0 ok, 1 service error, 2 bad invocation, 3 transport failure, 4 incompatible server.
Run ` + "`coex check`" + ` to verify the server version and ` + "`coex jobs`" + ` to list recorded submissions.
`))

type methodView struct {
	Command string
	Tooltip string
	Fields  []string
	Spec    *display.Spec
}

// Commands maps CLI subcommands to the service methods they call.
var Commands = []struct{ Command, Method string }{
	{"filter-genes", coexpression.OpFilterGenes},
	{"coex-net-clust", coexpression.OpConstCoexNetClust},
}

// Render produces the SKILL.md document from the method display metadata.
func Render() ([]byte, error) {
	views := make([]methodView, 0, len(Commands))
	for _, cmd := range Commands {
		spec, err := display.Lookup(cmd.Method)
		if err != nil {
			return nil, err
		}
		fields, _ := coexpression.FieldsFor(cmd.Method)
		views = append(views, methodView{
			Command: cmd.Command,
			Tooltip: spec.Tooltip,
			Fields:  fields,
			Spec:    spec,
		})
	}

	var buf bytes.Buffer
	if err := skillTmpl.Execute(&buf, struct {
		Name    string
		Methods []methodView
	}{Name: Name, Methods: views}); err != nil {
		return nil, fmt.Errorf("rendering skill: %w", err)
	}
	return buf.Bytes(), nil
}
