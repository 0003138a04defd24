package action

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

// UnitState is the subset of a systemd unit's status the unit action reads.
type UnitState struct {
	Active string
	Sub    string
	Load   string
}

// UnitControl talks to the service manager.
type UnitControl interface {
	State(ctx context.Context, unit string) (UnitState, error)
	Restart(ctx context.Context, unit string) error
}

func unitName(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".service"
}

// Unit fails the firing when the unit is not active. With restart set it
// first asks systemd to restart the unit and still reports the failure, so
// the outage shows up in history and alerts.
func Unit(ctl UnitControl, unit string, restart bool, log logx.Logger) (job.Callback, error) {
	if strings.TrimSpace(unit) == "" {
		return nil, errors.New("unit action needs a unit name")
	}
	name := unitName(unit)
	return func(ctx context.Context, _ time.Duration) error {
		st, err := ctl.State(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "unit %s", name)
		}
		if st.Load == "not-found" {
			return errors.Newf("unit %s not found", name)
		}
		if st.Active == "active" {
			return nil
		}
		if restart {
			if rerr := ctl.Restart(ctx, name); rerr != nil {
				return errors.CombineErrors(
					errors.Newf("unit %s is %s (%s)", name, st.Active, st.Sub),
					errors.Wrap(rerr, "restart"))
			}
			log.Warn("unit restarted", logx.String("unit", name), logx.String("was", st.Active))
		}
		return errors.Newf("unit %s is %s (%s)", name, st.Active, st.Sub)
	}, nil
}
