package action

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

const outputTail = 2048

// Exec runs argv as a child process. The process is killed when the firing's
// context is cancelled; a non-zero exit fails the firing with the tail of its
// combined output attached as detail.
func Exec(argv []string, dir string, log logx.Logger) (job.Callback, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("exec action needs a command")
	}
	argv = append([]string(nil), argv...)
	return func(ctx context.Context, _ time.Duration) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.WaitDelay = 2 * time.Second
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		start := time.Now()
		err := cmd.Run()
		log.Debug("exec finished",
			logx.String("cmd", argv[0]),
			logx.Duration("took", time.Since(start)),
			logx.Int("output_bytes", out.Len()))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "exec %s", argv[0])
		}
		return errors.WithDetail(errors.Wrapf(err, "exec %s", argv[0]), tail(out.String(), outputTail))
	}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
