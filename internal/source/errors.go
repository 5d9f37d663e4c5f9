package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable 文件缺失、为目录、二进制或超过大小上限
var ErrUnavailable = errors.New("file unavailable")

// CloneError 克隆错误，包含用户友好消息和原始错误
type CloneError struct {
	UserMessage string // 给用户看
	RawError    error  // 原始错误，写日志
}

func (e *CloneError) Error() string {
	return e.UserMessage
}

func (e *CloneError) Unwrap() error {
	return e.RawError
}

// classifyCloneError 根据 git 输出分类错误
func classifyCloneError(output string, err error) *CloneError {
	lower := strings.ToLower(output + " " + err.Error())
	raw := fmt.Errorf("%w, output: %s", err, strings.TrimSpace(output))

	switch {
	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "signal: killed"):
		return &CloneError{UserMessage: "clone timed out: the repository may be too large or the network unstable", RawError: raw}
	case strings.Contains(lower, "remote branch") && strings.Contains(lower, "not found"):
		return &CloneError{UserMessage: "branch not found in repository", RawError: raw}
	case strings.Contains(lower, "repository not found") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist"):
		return &CloneError{UserMessage: "repository not found or not accessible, check the address", RawError: raw}
	case strings.Contains(lower, "could not resolve host") ||
		strings.Contains(lower, "unable to access"):
		return &CloneError{UserMessage: "cannot reach the code host, try again later", RawError: raw}
	case strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "permission denied"):
		return &CloneError{UserMessage: "repository access denied, make sure it is public", RawError: raw}
	case strings.Contains(lower, "empty repository"):
		return &CloneError{UserMessage: "repository is empty", RawError: raw}
	default:
		return &CloneError{UserMessage: "failed to clone repository, check the address and retry", RawError: raw}
	}
}
