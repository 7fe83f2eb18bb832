package stepper

import "context"

// Step 作业中的单个步骤
type Step interface {
	// Name 步骤名，用于日志和错误
	Name() string

	// Execute 执行步骤
	Execute(ctx context.Context, props *Properties) error
}

// Rollbacker 可回滚的步骤
type Rollbacker interface {
	// Rollback 撤销 Execute 的效果，cause 为导致回滚的错误
	Rollback(ctx context.Context, props *Properties, cause error) error
}

// FuncStep 由函数构成的步骤
type FuncStep struct {
	StepName string
	Run      func(ctx context.Context, props *Properties) error
	Undo     func(ctx context.Context, props *Properties, cause error) error
}

// Name 返回步骤名
func (s *FuncStep) Name() string {
	return s.StepName
}

// Execute 执行步骤
func (s *FuncStep) Execute(ctx context.Context, props *Properties) error {
	if s.Run == nil {
		return nil
	}
	return s.Run(ctx, props)
}

// Rollback 回滚步骤
func (s *FuncStep) Rollback(ctx context.Context, props *Properties, cause error) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx, props, cause)
}
