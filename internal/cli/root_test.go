package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lydakis/coex/internal/config"
	"github.com/lydakis/coex/internal/jobs"
	"github.com/lydakis/coex/internal/jsonrpc"
	"github.com/lydakis/coex/internal/paths"
)

// fakeService is a CoExpression endpoint answering from canned replies.
type fakeService struct {
	mu       sync.Mutex
	requests []jsonrpc.Request
	auth     []string
	headers  []http.Header

	version string
	jobIDs  []string
	rpcErr  *jsonrpc.ErrorObject
	status  int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, "<html>upstream unavailable</html>")
		return
	}

	resp := map[string]any{"version": jsonrpc.Version, "id": req.ID}
	switch {
	case f.rpcErr != nil:
		resp["error"] = f.rpcErr
	case strings.HasSuffix(req.Method, ".version"):
		resp["result"] = []string{f.version}
	default:
		resp["result"] = f.jobIDs
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeService) lastParams(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("service received no requests")
	}
	last := f.requests[len(f.requests)-1]
	if len(last.Params) != 1 {
		t.Fatalf("len(params) = %d, want 1", len(last.Params))
	}
	params, ok := last.Params[0].(map[string]any)
	if !ok {
		t.Fatalf("params[0] = %T, want object", last.Params[0])
	}
	return params
}

func (f *fakeService) lastRequest(t *testing.T) (jsonrpc.Request, string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("service received no requests")
	}
	return f.requests[len(f.requests)-1], f.auth[len(f.auth)-1]
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	for _, name := range []string{
		"KB_AUTH_TOKEN",
		config.EnvURL,
		config.EnvTimeout,
		config.EnvCheckVersion,
		config.EnvLogLevel,
		config.EnvLogFormat,
	} {
		t.Setenv(name, "")
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()

	oldOut, oldErr, oldIn := rootStdout, rootStderr, rootStdin
	defer func() {
		rootStdout, rootStderr, rootStdin = oldOut, oldErr, oldIn
	}()

	var out, errOut bytes.Buffer
	rootStdout = &out
	rootStderr = &errOut
	rootStdin = strings.NewReader(stdin)

	code := Run(args)
	return code, out.String(), errOut.String()
}

func filterGenesFlags() []string {
	return []string{
		"--ws-id", "ws-1",
		"--inobj-id", "expr_matrix",
		"--outobj-id", "filtered",
		"--p-value", "0.050",
		"--method", "anova",
		"--num-genes", "100",
	}
}

func TestHandleRootFlagsVersion(t *testing.T) {
	oldVersion := buildVersion
	oldOut := rootStdout
	defer func() {
		buildVersion = oldVersion
		rootStdout = oldOut
	}()

	buildVersion = "1.2.3"
	var out bytes.Buffer
	rootStdout = &out

	for _, flag := range []string{"--version", "-V"} {
		out.Reset()
		handled, code := handleRootFlags([]string{flag})
		if !handled {
			t.Fatalf("handleRootFlags(%s) handled = false, want true", flag)
		}
		if code != 0 {
			t.Fatalf("code = %d, want 0", code)
		}
		if out.String() != "coex 1.2.3\n" {
			t.Fatalf("output = %q, want %q", out.String(), "coex 1.2.3\n")
		}
	}
}

func TestHandleRootFlagsIgnoresCommands(t *testing.T) {
	if handled, _ := handleRootFlags([]string{"version"}); handled {
		t.Fatal("handled = true, want false")
	}
	if handled, _ := handleRootFlags([]string{"--version", "extra"}); handled {
		t.Fatal("handled = true for multiple args, want false")
	}
}

func TestResolveBuildVersionHonorsInjectedValue(t *testing.T) {
	if got := resolveBuildVersion("v9.9.9"); got != "v9.9.9" {
		t.Fatalf("resolveBuildVersion() = %q, want %q", got, "v9.9.9")
	}
}

func TestRunFilterGenesPrintsJobIDsAndRecords(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-42"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	args := append([]string{"--url", srv.URL, "--token", "tok-1", "filter-genes"}, filterGenesFlags()...)
	code, stdout, stderr := runCLI(t, "", args...)
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}
	if stdout != "job-42\n" {
		t.Fatalf("stdout = %q, want job id", stdout)
	}

	req, authz := svc.lastRequest(t)
	if req.Method != "CoExpression.filter_genes" {
		t.Fatalf("method = %q, want CoExpression.filter_genes", req.Method)
	}
	if authz != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want Bearer tok-1", authz)
	}
	params := svc.lastParams(t)
	if params["p_value"] != "0.05" || params["num_genes"] != "100" || params["ws_id"] != "ws-1" {
		t.Fatalf("params = %v, want normalized string values", params)
	}

	recs, err := jobs.List()
	if err != nil {
		t.Fatalf("jobs.List() error = %v", err)
	}
	if len(recs) != 1 || recs[0].JobIDs[0] != "job-42" || recs[0].URL != srv.URL {
		t.Fatalf("ledger = %+v, want one filter_genes record", recs)
	}
}

func TestRunHeaderFlagOverridesConfigHeaders(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-1"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfgData := "[headers]\nX-Team = \"from-config\"\nX-Trace = \"cfg-trace\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	args := append([]string{
		"--config", cfgPath,
		"--url", srv.URL,
		"--token", "secret-tok",
		"--header", "x-team=from-flag",
		"-H", "X-Extra=a=b,c",
		"--log-level", "debug",
		"--log-format", "logfmt",
		"filter-genes",
	}, filterGenesFlags()...)
	code, _, stderr := runCLI(t, "", args...)
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}

	svc.mu.Lock()
	got := svc.headers[len(svc.headers)-1]
	svc.mu.Unlock()
	if got.Get("X-Team") != "from-flag" {
		t.Fatalf("X-Team = %q, want flag to override config", got.Get("X-Team"))
	}
	if got.Get("X-Trace") != "cfg-trace" {
		t.Fatalf("X-Trace = %q, want config header kept", got.Get("X-Trace"))
	}
	if got.Get("X-Extra") != "a=b,c" {
		t.Fatalf("X-Extra = %q, want %q", got.Get("X-Extra"), "a=b,c")
	}

	if !strings.Contains(stderr, "submitting job") {
		t.Fatalf("stderr = %q, want debug submit log", stderr)
	}
	if strings.Contains(stderr, "secret-tok") {
		t.Fatalf("stderr = %q, leaked the token", stderr)
	}
	if !strings.Contains(stderr, "REDACTED") {
		t.Fatalf("stderr = %q, want redacted Authorization", stderr)
	}
}

func TestRunRejectsMalformedHeaderFlag(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := runCLI(t, "", "--url", "http://127.0.0.1:1", "--token", "t", "--header", "no-equals", "version")
	if code != ExitUsageErr {
		t.Fatalf("code = %d, want %d (stderr %q)", code, ExitUsageErr, stderr)
	}
	if !strings.Contains(stderr, "invalid --header") {
		t.Fatalf("stderr = %q, want header error", stderr)
	}
}

func TestRunCoexNetClustMergesJSONAndParams(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-7", "job-8"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "",
		"--json", "--url", srv.URL, "--token", "tok-1",
		"coex-net-clust",
		"--param", "net_method=simple",
		"--num-modules", "7",
		`{"ws_id":"ws-1","inobj_id":"in","outobj_id":"out","cut_off":0.75,"net_method":"wgcna","clust_method":"hclust","num_modules":5}`,
	)
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}

	var out struct {
		Operation string   `json:"operation"`
		JobIDs    []string `json:"job_ids"`
		Record    string   `json:"record"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("decoding stdout %q: %v", stdout, err)
	}
	if out.Operation != "const_coex_net_clust" || len(out.JobIDs) != 2 || out.Record == "" {
		t.Fatalf("output = %+v, want operation, two job ids and a record", out)
	}

	params := svc.lastParams(t)
	if params["net_method"] != "simple" {
		t.Fatalf("net_method = %v, want --param to override JSON", params["net_method"])
	}
	if params["num_modules"] != "7" {
		t.Fatalf("num_modules = %v, want typed flag to win", params["num_modules"])
	}
	if params["cut_off"] != "0.75" {
		t.Fatalf("cut_off = %v, want stringified number", params["cut_off"])
	}
}

func TestRunReadsParametersFromStdin(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-1"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	code, _, stderr := runCLI(t, `{"ws_id":"ws-9","num_genes":50}`,
		"--url", srv.URL, "--token", "tok-1", "filter-genes", "--no-record")
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}
	params := svc.lastParams(t)
	if params["ws_id"] != "ws-9" || params["num_genes"] != "50" {
		t.Fatalf("params = %v, want stdin values", params)
	}
	if !strings.Contains(stderr, "parameters missing") {
		t.Fatalf("stderr = %q, want missing-parameter warning", stderr)
	}

	recs, _ := jobs.List()
	if len(recs) != 0 {
		t.Fatalf("ledger = %+v, want nothing with --no-record", recs)
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
		want int
	}{
		{
			name: "server error",
			svc:  &fakeService{rpcErr: &jsonrpc.ErrorObject{Name: "JSONRPCError", Code: -32500, Message: "workspace ws-1 not found"}},
			want: ExitServerErr,
		},
		{
			name: "invalid params",
			svc:  &fakeService{rpcErr: &jsonrpc.ErrorObject{Code: -32602, Message: "invalid params"}},
			want: ExitUsageErr,
		},
		{
			name: "gateway failure",
			svc:  &fakeService{status: http.StatusBadGateway},
			want: ExitInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			srv := httptest.NewServer(tt.svc)
			defer srv.Close()

			args := append([]string{"--url", srv.URL, "--token", "tok-1", "filter-genes"}, filterGenesFlags()...)
			code, stdout, stderr := runCLI(t, "", args...)
			if code != tt.want {
				t.Fatalf("code = %d, want %d (stderr %q)", code, tt.want, stderr)
			}
			if stdout != "" {
				t.Fatalf("stdout = %q, want empty on failure", stdout)
			}
			if !strings.HasPrefix(stderr, "coex: ") {
				t.Fatalf("stderr = %q, want coex: prefix", stderr)
			}
		})
	}
}

func TestRunWithoutTokenIsUsageError(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-1"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	args := append([]string{"--url", srv.URL, "filter-genes"}, filterGenesFlags()...)
	code, _, stderr := runCLI(t, "", args...)
	if code != ExitUsageErr {
		t.Fatalf("code = %d, want %d", code, ExitUsageErr)
	}
	if !strings.Contains(stderr, "coex login") {
		t.Fatalf("stderr = %q, want login hint", stderr)
	}
	if len(svc.requests) != 0 {
		t.Fatalf("service received %d requests, want none", len(svc.requests))
	}
}

func TestRunWithoutURLIsUsageError(t *testing.T) {
	isolateEnv(t)

	args := append([]string{"--token", "tok-1", "filter-genes"}, filterGenesFlags()...)
	code, _, stderr := runCLI(t, "", args...)
	if code != ExitUsageErr {
		t.Fatalf("code = %d, want %d (stderr %q)", code, ExitUsageErr, stderr)
	}
	if !strings.Contains(stderr, config.EnvURL) {
		t.Fatalf("stderr = %q, want %s hint", stderr, config.EnvURL)
	}
}

func TestRunRejectsBadFlagValues(t *testing.T) {
	isolateEnv(t)

	for _, args := range [][]string{
		{"--url", "http://127.0.0.1:1", "--token", "t", "filter-genes", "--num-genes", "many"},
		{"--url", "http://127.0.0.1:1", "--token", "t", "filter-genes", "--p-value", "small"},
		{"--url", "http://127.0.0.1:1", "--token", "t", "filter-genes", "--param", "novalue"},
		{"--url", "http://127.0.0.1:1", "--token", "t", "filter-genes", "[1,2]"},
		{"--timeout", "soon", "version"},
		{"bogus-command"},
	} {
		code, _, stderr := runCLI(t, "", args...)
		if code != ExitUsageErr {
			t.Fatalf("Run(%v) code = %d, want %d (stderr %q)", args, code, ExitUsageErr, stderr)
		}
	}
}

func TestRunVersion(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{version: "0.1.4"}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "", "--url", srv.URL, "--token", "tok-1", "version")
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}
	if stdout != "0.1.4\n" {
		t.Fatalf("stdout = %q, want server version", stdout)
	}
	req, _ := svc.lastRequest(t)
	if req.Method != "CoExpression.version" {
		t.Fatalf("method = %q, want CoExpression.version", req.Method)
	}
}

func TestRunCheck(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantCode   int
		wantStdout string
	}{
		{name: "newer patch", server: "0.1.5", wantCode: ExitOK, wantStdout: "compatible: client 0.1.0, server 0.1.5\n"},
		{name: "newer minor", server: "0.2.0", wantCode: ExitOK, wantStdout: "compatible: client 0.1.0, server 0.2.0\n"},
		{name: "major mismatch", server: "1.0.0", wantCode: ExitIncompatible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			srv := httptest.NewServer(&fakeService{version: tt.server})
			defer srv.Close()

			code, stdout, stderr := runCLI(t, "", "--url", srv.URL, "--token", "tok-1", "check")
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d (stderr %q)", code, tt.wantCode, stderr)
			}
			if stdout != tt.wantStdout {
				t.Fatalf("stdout = %q, want %q", stdout, tt.wantStdout)
			}
			if tt.wantCode == ExitOK && !strings.Contains(stderr, "WARN") {
				t.Fatalf("stderr = %q, want compatibility warnings", stderr)
			}
		})
	}
}

func TestRunCheckVersionBlocksIncompatibleSubmit(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{version: "2.0.0", jobIDs: []string{"job-1"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	args := append([]string{"--url", srv.URL, "--token", "tok-1", "--check-version", "filter-genes"}, filterGenesFlags()...)
	code, _, stderr := runCLI(t, "", args...)
	if code != ExitIncompatible {
		t.Fatalf("code = %d, want %d (stderr %q)", code, ExitIncompatible, stderr)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.requests) != 1 || svc.requests[0].Method != "CoExpression.version" {
		t.Fatalf("requests = %+v, want only the version probe", svc.requests)
	}
}

func TestRunLoginThenSubmitUsesSavedToken(t *testing.T) {
	isolateEnv(t)
	svc := &fakeService{jobIDs: []string{"job-1"}}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	code, stdout, stderr := runCLI(t, "saved-token\n", "login")
	if code != ExitOK {
		t.Fatalf("login code = %d, want 0 (stderr %q)", code, stderr)
	}
	if !strings.Contains(stdout, paths.TokenFile()) {
		t.Fatalf("login stdout = %q, want token path", stdout)
	}
	info, err := os.Stat(paths.TokenFile())
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("token file mode = %o, want 600", got)
	}

	args := append([]string{"--url", srv.URL, "filter-genes"}, filterGenesFlags()...)
	if code, _, stderr := runCLI(t, "", args...); code != ExitOK {
		t.Fatalf("submit code = %d, want 0 (stderr %q)", code, stderr)
	}
	if _, authz := svc.lastRequest(t); authz != "Bearer saved-token" {
		t.Fatalf("Authorization = %q, want saved token", authz)
	}
}

func TestRunLoginWithoutTokenIsUsageError(t *testing.T) {
	isolateEnv(t)
	if code, _, _ := runCLI(t, "", "login"); code != ExitUsageErr {
		t.Fatalf("code = %d, want %d", code, ExitUsageErr)
	}
}

func TestRunInitWritesConfig(t *testing.T) {
	isolateEnv(t)

	code, stdout, stderr := runCLI(t, "", "init", "--url", "https://coex.example/services/coexpression", "--timeout", "60", "--check-version")
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}
	if !strings.Contains(stdout, paths.ConfigFile()) {
		t.Fatalf("stdout = %q, want config path", stdout)
	}

	cfg, err := config.LoadFrom(paths.ConfigFile())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.URL != "https://coex.example/services/coexpression" || cfg.Timeout != "60s" || !cfg.CheckVersion {
		t.Fatalf("config = %+v, want url, 60s timeout and check_version", cfg)
	}

	if code, _, _ := runCLI(t, "", "init", "--url", "ftp://nope"); code != ExitUsageErr {
		t.Fatalf("init with ftp url code = %d, want %d", code, ExitUsageErr)
	}
}

func TestRunJobsListsAndFindsSubmissions(t *testing.T) {
	isolateEnv(t)

	code, stdout, _ := runCLI(t, "", "jobs")
	if code != ExitOK || !strings.Contains(stdout, "No recorded submissions") {
		t.Fatalf("empty jobs = %d %q, want empty-ledger message", code, stdout)
	}

	if _, err := jobs.Put(jobs.Record{Operation: "filter_genes", JobIDs: []string{"job-42"}, Params: map[string]string{"ws_id": "ws-1"}}); err != nil {
		t.Fatalf("jobs.Put() error = %v", err)
	}

	code, stdout, _ = runCLI(t, "", "jobs")
	if code != ExitOK || !strings.Contains(stdout, "job-42") || !strings.Contains(stdout, "OPERATION") {
		t.Fatalf("jobs = %d %q, want table with job-42", code, stdout)
	}

	code, stdout, _ = runCLI(t, "", "--json", "jobs", "job-42")
	if code != ExitOK {
		t.Fatalf("jobs job-42 code = %d, want 0", code)
	}
	var rec jobs.Record
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatalf("decoding record %q: %v", stdout, err)
	}
	if rec.Params["ws_id"] != "ws-1" {
		t.Fatalf("record = %+v, want stored params", rec)
	}

	if code, _, _ := runCLI(t, "", "jobs", "job-missing"); code != ExitUsageErr {
		t.Fatalf("jobs job-missing code = %d, want %d", code, ExitUsageErr)
	}
}

func TestRunDescribe(t *testing.T) {
	isolateEnv(t)

	code, stdout, _ := runCLI(t, "", "describe")
	if code != ExitOK || stdout != "const_coex_net_clust\nfilter_genes\n" {
		t.Fatalf("describe = %d %q, want method list", code, stdout)
	}

	code, stdout, _ = runCLI(t, "", "describe", "filter-genes")
	if code != ExitOK {
		t.Fatalf("describe filter-genes code = %d, want 0", code)
	}
	for _, want := range []string{"Filter Genes", "--p-value", "const_coex_net_clust"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("describe output = %q, want %q", stdout, want)
		}
	}

	if code, _, _ := runCLI(t, "", "describe", "no_such_method"); code != ExitUsageErr {
		t.Fatalf("describe unknown code = %d, want %d", code, ExitUsageErr)
	}
}

func TestRunSkillInstall(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, "", "skill", "install", "--data-agent-dir", dir, "--skip-claude")
	if code != ExitOK {
		t.Fatalf("code = %d, want 0 (stderr %q)", code, stderr)
	}
	if !strings.Contains(stdout, filepath.Join(dir, "coex", "SKILL.md")) {
		t.Fatalf("stdout = %q, want installed path", stdout)
	}
}
