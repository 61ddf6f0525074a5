package http

import (
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxPlayerNameLength = 30
	maxTopicNameLength  = 50
)

var validatorOnce sync.Once

// RegisterValidators 注册 playername 与 topicname 绑定校验规则，可重复调用
func RegisterValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("playername", func(fl validator.FieldLevel) bool {
			return validDisplayText(fl.Field().String(), maxPlayerNameLength)
		})
		_ = engine.RegisterValidation("topicname", func(fl validator.FieldLevel) bool {
			return validDisplayText(fl.Field().String(), maxTopicNameLength)
		})
	})
}

// validDisplayText 去除首尾空白后非空、不超长、不含控制字符
func validDisplayText(text string, maxLen int) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len([]rune(trimmed)) > maxLen {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
