//go:build linux

package action

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/coreos/go-systemd/v22/dbus"
)

// systemBus dials the system D-Bus per call; firings are minutes apart and a
// long-lived connection would need its own reconnect logic.
type systemBus struct{}

func NewUnitControl() UnitControl { return systemBus{} }

func (systemBus) State(ctx context.Context, unit string) (UnitState, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return UnitState{}, errors.Wrap(err, "connect systemd")
	}
	defer conn.Close()

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, []string{unit})
	if err != nil {
		return UnitState{}, errors.Wrap(err, "list units")
	}
	for _, u := range units {
		if u.Name == unit {
			return UnitState{Active: u.ActiveState, Sub: u.SubState, Load: u.LoadState}, nil
		}
	}
	return UnitState{Active: "unknown", Sub: "not-found", Load: "not-found"}, nil
}

func (systemBus) Restart(ctx context.Context, unit string) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return errors.Wrap(err, "connect systemd")
	}
	defer conn.Close()
	_, err = conn.RestartUnitContext(ctx, unit, "replace", nil)
	return err
}
