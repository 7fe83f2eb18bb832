package stepper

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSteps 作业没有步骤
	ErrNoSteps = errors.New("job has no steps")

	// ErrCanceled 作业被取消
	ErrCanceled = errors.New("job canceled")
)

// StepError 步骤执行失败
type StepError struct {
	Job  string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s: %v", e.Job, e.Step, e.Err)
}

// Unwrap 返回原始错误
func (e *StepError) Unwrap() error {
	return e.Err
}
