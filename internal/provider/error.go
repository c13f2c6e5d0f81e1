package provider

import "fmt"

// Error 是 provider 阶段的可追溯错误。
// 上层据此在日志中标明是哪个 provider 的哪个端点失败。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "popular" / "genres" / "discover"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
