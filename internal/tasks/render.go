package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
)

// NotAvailable 上下文中缺失的变量渲染为该标记
const NotAvailable = "[not available]"

// MissingOutput 依赖任务尚未运行或失败时的占位文本
func MissingOutput(taskID string) string {
	return fmt.Sprintf("[output of task %s not available]", taskID)
}

// placeholder 匹配 {{name}} 与 {{output:task_id}}
var placeholder = regexp.MustCompile(`\{\{\s*(output:)?([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render 渲染任务模板。
// 变量与跨任务引用在同一次扫描中按两类规则替换，插入的文件内容不会被再次展开。
func Render(task model.TaskDefinition, ctx *ExecutionContext) string {
	kinds := make(map[string]model.VariableKind, len(task.Variables))
	for _, v := range task.Variables {
		kinds[v.Name] = v.Kind
	}

	return placeholder.ReplaceAllStringFunc(task.Template, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		name := sub[2]
		if sub[1] != "" || kinds[name] == model.VarTaskOutput {
			return renderOutput(ctx, name)
		}

		v, ok := ctx.Value(name)
		if !ok {
			return NotAvailable
		}
		return renderValue(kinds[name], v)
	})
}

// MissingRequired 返回渲染时缺失的必填变量
func MissingRequired(task model.TaskDefinition, ctx *ExecutionContext) []string {
	var missing []string
	for _, v := range task.Variables {
		if !v.Required {
			continue
		}
		if v.Kind == model.VarTaskOutput {
			if _, ok := ctx.Output(v.Name); !ok {
				missing = append(missing, v.Name)
			}
			continue
		}
		if _, ok := ctx.Value(v.Name); !ok {
			missing = append(missing, v.Name)
		}
	}
	return missing
}

func renderOutput(ctx *ExecutionContext, taskID string) string {
	out, ok := ctx.Output(taskID)
	if !ok {
		return MissingOutput(taskID)
	}
	return prettyJSON(out)
}

func renderValue(kind model.VariableKind, v any) string {
	switch t := v.(type) {
	case []string:
		if kind == model.VarText {
			return strings.Join(t, "\n")
		}
		return strings.Join(t, ", ")
	case map[string]string:
		return renderBlocks(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// renderBlocks 将 map 按 key 排序展开为带标签的文本块
func renderBlocks(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for i, k := range keys {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString("### ")
		buf.WriteString(k)
		buf.WriteString("\n")
		buf.WriteString(m[k])
	}
	return buf.String()
}

func prettyJSON(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
