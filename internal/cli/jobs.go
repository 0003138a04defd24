package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"onfly/internal/config"
	"onfly/internal/task/job"
	"onfly/internal/task/schedule"
)

type jobRow struct {
	Name     string      `json:"name"`
	Schedule string      `json:"schedule"`
	Action   string      `json:"action"`
	Timeout  string      `json:"timeout"`
	Next     []time.Time `json:"next"`
}

func loadJobs(path string, n int, only string) ([]jobRow, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []jobRow
	for _, jc := range cfg.Jobs {
		if only != "" && jc.Name != only {
			continue
		}
		st, err := jc.Strategy()
		if err != nil {
			return nil, err
		}
		next, err := schedule.Next(st, now, n)
		if err != nil {
			return nil, err
		}
		out = append(out, jobRow{
			Name:     jc.Name,
			Schedule: fmt.Sprint(st),
			Action:   jc.Action.Kind,
			Timeout:  jc.TimeoutOrDefault(job.DefaultTimeout).String(),
			Next:     next,
		})
	}
	if only != "" && len(out) == 0 {
		return nil, errors.Newf("no job named %q", only)
	}
	return out, nil
}

func newValidateCmd(cfgFn func() string, outFn func(*cobra.Command) *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the job file and list its jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := loadJobs(cfgFn(), 1, "")
			if err != nil {
				return err
			}
			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{r.Name, r.Schedule, r.Action, r.Timeout, r.Next[0].Format(time.RFC3339)}
			}
			return outFn(cmd).Print([]string{"NAME", "SCHEDULE", "ACTION", "TIMEOUT", "FIRST_RUN"}, table, rows)
		},
	}
}

func newNextCmd(cfgFn func() string, outFn func(*cobra.Command) *Output) *cobra.Command {
	var (
		count int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print upcoming fire times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := loadJobs(cfgFn(), count, name)
			if err != nil {
				return err
			}
			var table [][]string
			for _, r := range rows {
				for i, at := range r.Next {
					table = append(table, []string{r.Name, strconv.Itoa(i + 1), at.Format(time.RFC3339)})
				}
			}
			return outFn(cmd).Print([]string{"NAME", "#", "AT"}, table, rows)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "fire times per job")
	cmd.Flags().StringVar(&name, "job", "", "only this job")
	return cmd
}

func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
