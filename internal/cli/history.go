package cli

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"onfly/internal/config"
	"onfly/internal/storage"
	logx "onfly/pkg/logx"
)

func newHistoryCmd(cfgFn func() string, outFn func(*cobra.Command) *Output) *cobra.Command {
	var q storage.Query
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent firing outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(cfgFn())
			if err != nil {
				return err
			}
			busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
			if err != nil {
				return err
			}
			st, err := storage.Open(storage.Config{
				Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
				Path:        strings.TrimSpace(cfg.Storage.Path),
				BusyTimeout: busy,
			}, logx.Nop())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.Wrap(storage.ErrDisabled, "storage.driver is none")
			}
			defer st.Close()

			ctx, cancel := withTimeout(cmd, 10*time.Second)
			defer cancel()
			runs, err := st.RecentRuns(ctx, q)
			if err != nil {
				return err
			}
			table := make([][]string, len(runs))
			for i, r := range runs {
				table[i] = []string{
					r.Started.Local().Format("2006-01-02 15:04:05"),
					r.Job,
					strings.TrimPrefix(r.Kind, "job."),
					r.Duration.Round(time.Millisecond).String(),
					oneLine(r.Error),
				}
			}
			if runs == nil {
				runs = []storage.RunRecord{}
			}
			return outFn(cmd).Print([]string{"STARTED", "JOB", "OUTCOME", "TOOK", "ERROR"}, table, runs)
		},
	}
	cmd.Flags().StringVar(&q.Job, "job", "", "only this job")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 50, "max records")
	return cmd
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
