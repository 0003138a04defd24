package action

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	st "github.com/showwin/speedtest-go/speedtest"

	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

// SpeedtestConfig controls one measurement.
type SpeedtestConfig struct {
	// Candidate servers pinged, nearest first.
	Candidates int
	// Lowest-latency servers given a full download/upload test.
	Servers        int
	MaxConnections int
	SavingMode     bool
}

// SpeedtestResult is the average over the fully tested servers.
type SpeedtestResult struct {
	DownloadMbps float64
	UploadMbps   float64
	Ping         time.Duration
	ISP          string
	Server       string
	Servers      int
	Took         time.Duration
}

// SpeedtestRunner measures link throughput.
type SpeedtestRunner interface {
	Run(ctx context.Context) (SpeedtestResult, error)
}

type speedtestRunner struct{ cfg SpeedtestConfig }

func NewSpeedtestRunner(cfg SpeedtestConfig) SpeedtestRunner {
	if cfg.Servers <= 0 {
		cfg.Servers = 1
	}
	if cfg.Candidates < cfg.Servers {
		cfg.Candidates = max(5, cfg.Servers)
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 4
	}
	return &speedtestRunner{cfg: cfg}
}

// Speedtest logs one measurement per firing.
func Speedtest(r SpeedtestRunner, log logx.Logger) job.Callback {
	return func(ctx context.Context, _ time.Duration) error {
		res, err := r.Run(ctx)
		if err != nil {
			return errors.Wrap(err, "speedtest")
		}
		log.Info("speedtest",
			logx.Float64("download_mbps", res.DownloadMbps),
			logx.Float64("upload_mbps", res.UploadMbps),
			logx.Duration("ping", res.Ping),
			logx.String("isp", res.ISP),
			logx.String("server", res.Server),
			logx.Int("servers", res.Servers),
			logx.Duration("took", res.Took))
		return nil
	}
}

func (r *speedtestRunner) Run(ctx context.Context) (SpeedtestResult, error) {
	cfg := r.cfg
	start := time.Now()

	// Own client per run so connections can be dropped afterwards; package
	// level helpers in speedtest-go keep state between runs.
	stc := st.New(st.WithUserConfig(&st.UserConfig{
		SavingMode:     cfg.SavingMode,
		MaxConnections: cfg.MaxConnections,
	}))
	stc.SetNThread(cfg.MaxConnections)
	defer func() {
		stc.Reset()
		if tr, ok := http.DefaultTransport.(*http.Transport); ok {
			tr.CloseIdleConnections()
		}
	}()

	user, err := stc.FetchUserInfoContext(ctx)
	if err != nil {
		return SpeedtestResult{}, errors.Wrap(err, "fetch user info")
	}
	servers, err := stc.FetchServerListContext(ctx)
	if err != nil {
		return SpeedtestResult{}, errors.Wrap(err, "fetch server list")
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return SpeedtestResult{}, errors.New("no servers available")
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Distance < servers[j].Distance })
	candidates := servers[:min(cfg.Candidates, len(servers))]

	pinged := make([]*st.Server, 0, len(candidates))
	for _, s := range candidates {
		if err := ctx.Err(); err != nil {
			return SpeedtestResult{}, err
		}
		if err := s.PingTestContext(ctx, nil); err != nil || s.Latency <= 0 {
			continue
		}
		pinged = append(pinged, s)
	}
	if len(pinged) == 0 {
		return SpeedtestResult{}, errors.New("all latency tests failed")
	}
	sort.Slice(pinged, func(i, j int) bool { return pinged[i].Latency < pinged[j].Latency })

	var (
		res  SpeedtestResult
		done int
	)
	for _, s := range pinged[:min(cfg.Servers, len(pinged))] {
		if err := ctx.Err(); err != nil {
			return SpeedtestResult{}, err
		}
		if err := s.DownloadTestContext(ctx); err != nil {
			continue
		}
		if err := s.UploadTestContext(ctx); err != nil {
			continue
		}
		if done == 0 {
			res.Server = s.Sponsor
		}
		res.DownloadMbps += s.DLSpeed.Mbps()
		res.UploadMbps += s.ULSpeed.Mbps()
		res.Ping += s.Latency
		done++
	}
	if done == 0 {
		return SpeedtestResult{}, errors.New("full test failed for all servers")
	}
	res.DownloadMbps /= float64(done)
	res.UploadMbps /= float64(done)
	res.Ping /= time.Duration(done)
	res.ISP = user.Isp
	res.Servers = done
	res.Took = time.Since(start)
	return res, nil
}
