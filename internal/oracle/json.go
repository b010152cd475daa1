package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SanitizeJSON 去掉模型输出中常见的 Markdown 代码块和前后的多余文本
func SanitizeJSON(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "\ufeff")

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if strings.HasPrefix(strings.ToLower(cleaned), "json") {
			cleaned = cleaned[4:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.IndexAny(cleaned, "{[")
	if start == -1 {
		return cleaned
	}

	closer := "}"
	if cleaned[start] == '[' {
		closer = "]"
	}

	end := strings.LastIndex(cleaned, closer)
	if end < start {
		return cleaned[start:]
	}

	return cleaned[start : end+1]
}

// decodeJSON 只做解析，不做字段校验
func decodeJSON(raw string, out any) error {
	if err := json.Unmarshal([]byte(SanitizeJSON(raw)), out); err != nil {
		return fmt.Errorf("解析 Oracle 响应失败: %w", err)
	}

	return nil
}

// decodeStrict 解析 JSON 并按 validate 标签校验，out 必须是结构体指针
func decodeStrict(raw string, out any) error {
	if err := decodeJSON(raw, out); err != nil {
		return err
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("Oracle 响应未通过校验: %w", err)
	}

	return nil
}

// keepValid 逐条按 validate 标签校验，返回通过的条目和被丢弃的条数
func keepValid[T any](items []T) ([]T, int) {
	kept := make([]T, 0, len(items))
	for i := range items {
		if err := validate.Struct(&items[i]); err != nil {
			continue
		}
		kept = append(kept, items[i])
	}

	return kept, len(items) - len(kept)
}
