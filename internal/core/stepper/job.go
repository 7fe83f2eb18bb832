package stepper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/stepper")

// rollbackTimeout 回滚不受作业 ctx 取消影响，但有独立的上限
const rollbackTimeout = 10 * time.Second

// Job 可回滚的多步骤作业
type Job struct {
	id      string
	name    string
	steps   []Step
	props   *Properties
	timeout time.Duration
}

// JobOption 作业选项
type JobOption func(*Job)

// WithTimeout 设置作业整体超时
func WithTimeout(d time.Duration) JobOption {
	return func(j *Job) {
		j.timeout = d
	}
}

// NewJob 创建作业，props 为 nil 时创建新的属性容器
func NewJob(name string, steps []Step, props *Properties, opts ...JobOption) *Job {
	if props == nil {
		props = NewProperties()
	}
	j := &Job{
		id:    uuid.NewString(),
		name:  name,
		steps: steps,
		props: props,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID 返回作业 ID
func (j *Job) ID() string {
	return j.id
}

// Name 返回作业名
func (j *Job) Name() string {
	return j.name
}

// Properties 返回属性容器
func (j *Job) Properties() *Properties {
	return j.props
}

// Run 同步执行作业
//
// 返回的错误为 *StepError；回滚中的错误通过 multierr 附加在后面。
func (j *Job) Run(ctx context.Context) error {
	if len(j.steps) == 0 {
		return ErrNoSteps
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	for i, step := range j.steps {
		if err := ctx.Err(); err != nil {
			stepErr := &StepError{Job: j.name, Step: step.Name(), Err: fmt.Errorf("%w: %v", ErrCanceled, err)}
			return j.rollback(i, stepErr)
		}

		logger.Debug("执行步骤", "job", j.name, "id", log.TruncateID(j.id, 8), "step", step.Name())
		if err := step.Execute(ctx, j.props); err != nil {
			stepErr := &StepError{Job: j.name, Step: step.Name(), Err: err}
			// 失败的步骤自身也参与回滚，以便清理部分完成的工作
			return j.rollback(i+1, stepErr)
		}
	}
	return nil
}

// Start 在新协程中执行作业，完成后调用 done
func (j *Job) Start(ctx context.Context, done func(err error)) {
	go func() {
		err := j.Run(ctx)
		if done != nil {
			done(err)
		}
	}()
}

// rollback 逆序回滚前 n 个步骤
func (j *Job) rollback(n int, cause *StepError) error {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	var err error = cause
	for i := n - 1; i >= 0; i-- {
		rb, ok := j.steps[i].(Rollbacker)
		if !ok {
			continue
		}
		if rbErr := rb.Rollback(ctx, j.props, cause.Err); rbErr != nil {
			logger.Warn("步骤回滚失败", "job", j.name, "step", j.steps[i].Name(), "error", rbErr)
			err = multierr.Append(err, fmt.Errorf("rollback %s: %w", j.steps[i].Name(), rbErr))
		}
	}
	return err
}
