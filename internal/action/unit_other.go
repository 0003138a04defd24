//go:build !linux

package action

import (
	"context"

	"github.com/cockroachdb/errors"
)

var errNoSystemd = errors.New("systemd is only available on linux")

type noSystemd struct{}

func NewUnitControl() UnitControl { return noSystemd{} }

func (noSystemd) State(context.Context, string) (UnitState, error) { return UnitState{}, errNoSystemd }
func (noSystemd) Restart(context.Context, string) error            { return errNoSystemd }
