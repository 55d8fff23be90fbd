package reminder

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeFormat = errors.New("时间格式错误，支持的格式有：XX时XX分、HHMM、HH:MM")
	ErrInvalidTimeRange  = errors.New("时间范围错误，小时应在0-23之间，分钟应在0-59之间")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTaskNotFound      = errors.New("task not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrDelivery          = errors.New("delivery failure")

	// ErrNoTasks is returned when the destination has no tasks at all.
	ErrNoTasks = fmt.Errorf("%w: destination has no tasks", ErrTaskNotFound)
)
