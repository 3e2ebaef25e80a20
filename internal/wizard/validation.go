package wizard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate 线程安全，全局复用以缓存解析后的 tag
var validate = validator.New()

// Rule 描述一个字段的校验规则，Tag 为 validator 规则，例如 "min=2" 或 "oneof=legal medical"。
type Rule struct {
	Field   string
	Tag     string
	Message string
}

// check 首尾空白不计入长度，纯空白视为未填写
func (r Rule) check(value string) bool {
	return validate.Var(strings.TrimSpace(value), r.Tag) == nil
}

// Schema 是某一步骤的全部规则，按声明顺序校验。
type Schema []Rule

// FieldErrors 字段名到提示信息
type FieldErrors map[string]string

// Validate 校验每一个字段，返回全部失败字段；全部通过时返回 nil。
func (s Schema) Validate(values map[string]string) FieldErrors {
	var errs FieldErrors
	for _, rule := range s {
		if rule.check(values[rule.Field]) {
			continue
		}
		if errs == nil {
			errs = make(FieldErrors)
		}
		if _, exists := errs[rule.Field]; !exists {
			errs[rule.Field] = rule.Message
		}
	}
	return errs
}

// Fields 返回 schema 涉及的字段名
func (s Schema) Fields() []string {
	fields := make([]string, 0, len(s))
	for _, rule := range s {
		fields = append(fields, rule.Field)
	}
	return fields
}

// ValidationError 表示某一步骤提交被拒绝，状态未被修改。
type ValidationError struct {
	Step   Step
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("step %d validation failed: %s", e.Step, strings.Join(names, ", "))
}

// Details 转换为响应中的 details 字段
func (e *ValidationError) Details() map[string]interface{} {
	details := make(map[string]interface{}, len(e.Fields))
	for name, msg := range e.Fields {
		details[name] = msg
	}
	return details
}
