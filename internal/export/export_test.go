// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/informatica-export/internal/manifest"
	"github.com/pdiddy/informatica-export/internal/pmrep"
	"github.com/pdiddy/informatica-export/pkg/types"
)

const exportedXML = `<?xml version="1.0" encoding="UTF-8"?>
<POWERMART CREATION_DATE="03/14/2024 09:26:53" REPOSITORY_VERSION="188.103">
<REPOSITORY NAME="REP_PROD" VERSION="188" CODEPAGE="UTF-8" DATABASETYPE="Oracle">
<WORKFLOW NAME="%s" SERVERNAME ="IS_PROD" SERVER_DOMAINNAME ="Domain_PROD"/>
</REPOSITORY>
</POWERMART>
`

// fakeRunner stands in for pmrep. executequery writes manifest to the
// manifest path and objectexport writes an XML file to its -u path.
type fakeRunner struct {
	fs       afero.Fs
	manifest string

	connectExit int
	queryExit   int
	failObjects map[string]bool // object name -> objectexport exits 1
	infraErrOn  string          // op that fails to start

	calls []pmrep.Command
}

func (f *fakeRunner) Path() string { return "/opt/infa/bin/pmrep" }

func (f *fakeRunner) Run(_ context.Context, c pmrep.Command) (pmrep.Result, error) {
	f.calls = append(f.calls, c)
	if c.Op == f.infraErrOn {
		return pmrep.Result{ExitCode: -1}, fmt.Errorf("%w: exec format error", pmrep.ErrToolUnavailable)
	}

	switch c.Op {
	case pmrep.OpConnect:
		if f.connectExit != 0 {
			return pmrep.Result{ExitCode: f.connectExit, Output: "[REP_12164] Domain-related error"}, nil
		}
		return pmrep.Result{Output: "connect completed successfully."}, nil

	case pmrep.OpExecuteQuery:
		out := argValue(c, "-u")
		if err := afero.WriteFile(f.fs, out, []byte(f.manifest), 0o644); err != nil {
			return pmrep.Result{}, err
		}
		if f.queryExit != 0 {
			return pmrep.Result{ExitCode: f.queryExit, Output: "query not found"}, nil
		}
		return pmrep.Result{Output: "executequery completed successfully."}, nil

	case pmrep.OpObjectExport:
		name := argValue(c, "-n")
		if f.failObjects[name] {
			return pmrep.Result{ExitCode: 1, Output: "object not found"}, nil
		}
		out := argValue(c, "-u")
		if err := afero.WriteFile(f.fs, out, []byte(fmt.Sprintf(exportedXML, name)), 0o644); err != nil {
			return pmrep.Result{}, err
		}
		return pmrep.Result{Output: "objectexport completed successfully."}, nil
	}
	return pmrep.Result{ExitCode: 2}, nil
}

func (f *fakeRunner) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func argValue(c pmrep.Command, flag string) string {
	for _, a := range c.Args {
		if a.Flag == flag {
			return a.Value
		}
	}
	return ""
}

func testConfig() types.SessionConfig {
	return types.SessionConfig{
		Repository:  "REP_DEV",
		Target:      types.ConnectTarget{Host: "infa01", Port: "6005"},
		Username:    "exporter",
		Credential:  types.Credential{Password: "s3cret"},
		Query:       "q_release",
		DomainFile:  "/opt/infa/domains.infa",
		CommandsDir: "/opt/infa/bin",
		OutputDir:   "/export",
		LogFile:     "/export/informatica-export.log",
		Normalize:   true,
	}
}

type harness struct {
	fs     afero.Fs
	runner *fakeRunner
	logs   *observer.ObservedLogs
	exp    *Exporter
}

func newHarness(cfg types.SessionConfig, runner *fakeRunner) *harness {
	fs := afero.NewMemMapFs()
	runner.fs = fs
	core, logs := observer.New(zapcore.DebugLevel)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	exp := New(cfg,
		WithFs(fs),
		WithRunner(runner),
		WithLogger(zap.New(core)),
		WithClock(func() time.Time { return start }),
	)
	return &harness{fs: fs, runner: runner, logs: logs, exp: exp}
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, path)
	require.NoError(t, err)
	return ok
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	return string(data)
}

func (h *harness) messages(prefix string) []string {
	var out []string
	for _, e := range h.logs.All() {
		if strings.HasPrefix(e.Message, prefix) {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestRunExportsEveryObject(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{
		manifest: "1,SalesFolder,wf_Load,workflow,none\n" +
			"2,SalesFolder,m_Map1,transformation,mapplet\n" +
			"3,Finance,exp_Calc,transformation,expression\n",
	})

	summary, err := h.exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"connect", "executequery", "objectexport", "objectexport", "objectexport"}, h.runner.ops())
	assert.Equal(t, 3, summary.Total())
	assert.Equal(t, 3, summary.Succeeded())
	assert.False(t, summary.HasFailures())

	wantPaths := []string{
		"/export/SalesFolder/workflow/wf_Load.xml",
		"/export/SalesFolder/mapplet/m_Map1.xml",
		"/export/Finance/transformation/expression/exp_Calc.xml",
	}
	for i, p := range wantPaths {
		assert.Equal(t, filepath.FromSlash(p), summary.Outcomes[i].Target.Path)
		assert.Equal(t, i+1, summary.Outcomes[i].Number)
		assert.True(t, h.exists(t, p), "missing %s", p)
	}

	assert.Equal(t, []string{
		"Exporting object 1: SalesFolder, workflow, none, wf_Load. SUCCESS",
		"Exporting object 2: SalesFolder, mapplet, none, m_Map1. SUCCESS",
		"Exporting object 3: Finance, transformation, expression, exp_Calc. SUCCESS",
	}, h.messages("Exporting object"))
	assert.Equal(t, []string{"Export finished: 3 exported, 0 failed (total: 3)"}, h.messages("Export finished"))

	assert.False(t, h.exists(t, "/export/objectlist.txt"), "manifest must be removed")
}

func TestRunWorkflowScenario(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{manifest: "1,SalesFolder,wf_Load,workflow,none\n"})

	_, err := h.exp.Run(context.Background())
	require.NoError(t, err)

	content := h.read(t, "/export/SalesFolder/workflow/wf_Load.xml")
	assert.Contains(t, content, `CREATION_DATE="01/01/2010 01:00:00"`)
	assert.Contains(t, content, `REPOSITORY NAME="[INFA_REPOSITORY_NAME]"`)
	assert.Contains(t, content, `SERVERNAME ="[INFA_INTEGRATION_SERVICE_NAME]"`)
	assert.Contains(t, content, `SERVER_DOMAINNAME ="[INFA_DOMAIN_NAME]"`)
	assert.NotContains(t, content, "03/14/2024")

	call := h.runner.calls[2]
	assert.Equal(t, []string{
		"objectexport", "-n", "wf_Load", "-o", "workflow", "-t", "none", "-f", "SalesFolder",
		"-b", "-u", filepath.FromSlash("/export/SalesFolder/workflow/wf_Load.xml"),
	}, call.Argv())
}

func TestRunMappletScenario(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{manifest: "2,SalesFolder,m_Map1,transformation,mapplet\n"})

	summary, err := h.exp.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 1)
	target := summary.Outcomes[0].Target
	assert.Equal(t, "mapplet", target.Type)
	assert.Equal(t, "none", target.Subtype)
	assert.True(t, h.exists(t, "/export/SalesFolder/mapplet/m_Map1.xml"))
	assert.Equal(t, "mapplet", argValue(h.runner.calls[2], "-o"))
	assert.Equal(t, "none", argValue(h.runner.calls[2], "-t"))
}

func TestRunContinuesPastFailedObjects(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{
		manifest: "1,F,wf_A,workflow,none\n" +
			"2,F,wf_B,workflow,none\n" +
			"3,F,wf_C,workflow,none\n" +
			"4,F,wf_D,workflow,none\n",
		failObjects: map[string]bool{"wf_B": true},
	})

	summary, err := h.exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total())
	assert.Equal(t, 3, summary.Succeeded())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, types.ExportFailed, summary.Outcomes[1].Status)
	assert.Equal(t, 1, summary.Outcomes[1].ExitCode)
	assert.Empty(t, summary.Outcomes[1].Error, "missing file after failed export is not a normalization error")

	assert.Equal(t, []string{
		"Exporting object 1: F, workflow, none, wf_A. SUCCESS",
		"Exporting object 2: F, workflow, none, wf_B. FAILED",
		"Exporting object 3: F, workflow, none, wf_C. SUCCESS",
		"Exporting object 4: F, workflow, none, wf_D. SUCCESS",
	}, h.messages("Exporting object"))

	assert.True(t, h.exists(t, "/export/F/workflow/wf_D.xml"))
	assert.False(t, h.exists(t, "/export/objectlist.txt"))

	log := h.read(t, "/export/informatica-export.log")
	assert.Equal(t, 6, strings.Count(log, "Executing command:"))
	assert.Contains(t, log, "object not found")
}

func TestRunConnectFailure(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{connectExit: 1})

	summary, err := h.exp.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.NotErrorIs(t, err, ErrQueryFailed)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.ExitCode)
	assert.Equal(t, "/export/informatica-export.log", stepErr.LogFile)

	assert.Equal(t, []string{"connect"}, h.runner.ops())
	assert.Empty(t, summary.Outcomes)
	assert.Equal(t, []string{
		"Connection failed. Exit code: 1. Please check log: /export/informatica-export.log",
	}, h.messages("Connection failed"))

	log := h.read(t, "/export/informatica-export.log")
	assert.Contains(t, log, "Executing command:\n/opt/infa/bin/pmrep connect -r REP_DEV -h infa01 -o 6005 -n [REDACTED] -x [REDACTED]\n")
	assert.Contains(t, log, "[REP_12164] Domain-related error\n---------------------------\n\n")
	assert.NotContains(t, log, "s3cret")
}

func TestRunQueryFailureKeepsManifest(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{
		manifest:  "1,F,wf_A,workflow,",
		queryExit: 7,
	})

	_, err := h.exp.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, err.Error(), "exit code 7")

	assert.Equal(t, []string{"connect", "executequery"}, h.runner.ops())
	assert.True(t, h.exists(t, "/export/objectlist.txt"), "failed query output is left in place")
	assert.Len(t, h.messages("Executequery command failed. Exit code: 7."), 1)
	assert.Contains(t, h.read(t, "/export/informatica-export.log"), "query not found")
}

func TestRunMalformedManifest(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{
		manifest: "1,F,wf_A,workflow,none\n2,F,broken\n3,F,wf_C,workflow,none\n",
	})

	summary, err := h.exp.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrMalformedRow)

	assert.Len(t, summary.Outcomes, 1)
	assert.Equal(t, []string{"connect", "executequery", "objectexport"}, h.runner.ops())
	assert.False(t, h.exists(t, "/export/objectlist.txt"), "manifest is removed once the loop started")
}

func TestRunInfrastructureError(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{infraErrOn: pmrep.OpConnect})

	_, err := h.exp.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pmrep.ErrToolUnavailable)
	assert.NotErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, []string{"connect"}, h.runner.ops())
}

func TestRunWithoutNormalization(t *testing.T) {
	cfg := testConfig()
	cfg.Normalize = false
	h := newHarness(cfg, &fakeRunner{manifest: "1,SalesFolder,wf_Load,workflow,none\n"})

	_, err := h.exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf(exportedXML, "wf_Load"), h.read(t, "/export/SalesFolder/workflow/wf_Load.xml"))
}

func TestRunEmptyManifest(t *testing.T) {
	h := newHarness(testConfig(), &fakeRunner{manifest: ""})

	summary, err := h.exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total())
	assert.Equal(t, []string{"connect", "executequery"}, h.runner.ops())
	assert.False(t, h.exists(t, "/export/objectlist.txt"))
}

func TestTallyRecord(t *testing.T) {
	acc := tally{next: 1}
	acc = acc.record(types.ObjectOutcome{Number: 1})
	acc = acc.record(types.ObjectOutcome{Number: 2})

	assert.Equal(t, 3, acc.next)
	assert.Len(t, acc.outcomes, 2)
}
