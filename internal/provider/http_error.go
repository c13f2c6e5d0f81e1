package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示 provider 返回了非 2xx 的 HTTP 状态码（已耗尽 transport 重试）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Message    string // provider 的 status_message（可能为空）
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// MalformedRecordError 表示某条结果缺少必需字段。
// 产品约束：不重试、不升级，直接给用户一条通用致歉消息。
type MalformedRecordError struct {
	Field string
}

func (e *MalformedRecordError) Error() string {
	if e == nil || strings.TrimSpace(e.Field) == "" {
		return "malformed record"
	}
	return "malformed record: missing " + e.Field
}
