package action

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onfly/internal/config"
	logx "onfly/pkg/logx"
)

func TestBuildRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	_, err := Build(config.ActionConfig{Kind: "teleport"}, logx.Nop())
	require.Error(t, err)
	assert.True(t, crdb.Is(err, ErrUnknownKind))
}

func TestLogWritesMessage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cb, err := Build(config.ActionConfig{Kind: config.ActionLog, Message: "tick"}, logx.NewWriter(&buf, logx.LevelInfo))
	require.NoError(t, err)
	require.NoError(t, cb(context.Background(), time.Second))
	assert.Contains(t, buf.String(), `"tick"`)
}

func TestHTTPChecksStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ok, err := HTTP(srv.URL+"/up", http.MethodHead, http.StatusNoContent, srv.Client())
	require.NoError(t, err)
	assert.NoError(t, ok(context.Background(), time.Second))

	down, err := HTTP(srv.URL+"/down", "", 0, srv.Client())
	require.NoError(t, err)
	err = down(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503, want 200")

	_, err = HTTP("  ", "", 0, nil)
	require.Error(t, err)
}

func TestHTTPHonoursCancellation(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cb, err := HTTP(srv.URL, "", 0, srv.Client())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = cb(ctx, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExec(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh on PATH")
	}

	ok, err := Exec([]string{sh, "-c", "exit 0"}, "", logx.Nop())
	require.NoError(t, err)
	assert.NoError(t, ok(context.Background(), time.Second))

	bad, err := Exec([]string{sh, "-c", "echo broken pipe >&2; exit 3"}, t.TempDir(), logx.Nop())
	require.NoError(t, err)
	err = bad(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, strings.Join(crdb.GetAllDetails(err), "\n"), "broken pipe")

	slow, err := Exec([]string{sh, "-c", "sleep 5"}, "", logx.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = slow(ctx, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = Exec(nil, "", logx.Nop())
	require.Error(t, err)
}

type stubRunner struct {
	res SpeedtestResult
	err error
}

func (s stubRunner) Run(context.Context) (SpeedtestResult, error) { return s.res, s.err }

func TestSpeedtestLogsResult(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	cb := Speedtest(stubRunner{res: SpeedtestResult{DownloadMbps: 93.5, ISP: "acme", Servers: 1}}, logx.NewWriter(&buf, logx.LevelInfo))
	require.NoError(t, cb(context.Background(), time.Minute))
	assert.Contains(t, buf.String(), `"isp":"acme"`)

	failing := Speedtest(stubRunner{err: errors.New("no route")}, logx.Nop())
	err := failing(context.Background(), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speedtest: no route")
}

type fakeUnits struct {
	state    UnitState
	err      error
	restarts []string
}

func (f *fakeUnits) State(context.Context, string) (UnitState, error) { return f.state, f.err }

func (f *fakeUnits) Restart(_ context.Context, unit string) error {
	f.restarts = append(f.restarts, unit)
	return nil
}

func TestUnitAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	up := &fakeUnits{state: UnitState{Active: "active", Sub: "running", Load: "loaded"}}
	cb, err := Unit(up, "nginx", true, logx.Nop())
	require.NoError(t, err)
	assert.NoError(t, cb(ctx, time.Second))
	assert.Empty(t, up.restarts)

	down := &fakeUnits{state: UnitState{Active: "failed", Sub: "failed", Load: "loaded"}}
	cb, err = Unit(down, "nginx", true, logx.Nop())
	require.NoError(t, err)
	err = cb(ctx, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit nginx.service is failed")
	assert.Equal(t, []string{"nginx.service"}, down.restarts)

	missing := &fakeUnits{state: UnitState{Active: "unknown", Sub: "not-found", Load: "not-found"}}
	cb, err = Unit(missing, "backup.timer", false, logx.Nop())
	require.NoError(t, err)
	err = cb(ctx, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup.timer not found")

	_, err = Unit(up, " ", false, logx.Nop())
	require.Error(t, err)
}
