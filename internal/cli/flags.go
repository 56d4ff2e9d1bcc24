package cli

import (
	"github.com/spf13/pflag"

	"github.com/alexanderramin/shopfloor/internal/domain"
)

// statusFlag accepts a board status either as displayed ("In Progress") or
// in snake_case ("in_progress").
type statusFlag struct {
	status *domain.TaskStatus
}

func newStatusFlag(dst *domain.TaskStatus) pflag.Value {
	return statusFlag{status: dst}
}

func (f statusFlag) String() string {
	if f.status == nil {
		return ""
	}
	return string(*f.status)
}

func (f statusFlag) Set(s string) error {
	st, err := domain.ParseTaskStatus(s)
	if err != nil {
		return err
	}
	*f.status = st
	return nil
}

func (f statusFlag) Type() string { return "status" }
