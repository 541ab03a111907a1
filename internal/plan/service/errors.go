package service

// ValidationError 调用方输入不合法（可纠正后重试）
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// StateConflictError 操作与当前生命周期状态不符（整体中止，无部分效果）
type StateConflictError struct {
	Current string
	Msg     string
}

func (e *StateConflictError) Error() string {
	return e.Msg
}

// ConflictError 违反唯一性约束（如同一运行的第二个实例快照），属程序逻辑错误
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return e.Msg
}
