package apihttp

import (
	"fmt"
	"sync"

	"cryptomind/internal/alert"
	"cryptomind/internal/journal"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators 为 gin 的 binding 注册 side / condition 规则。
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err := v.RegisterValidation("side", func(fl validator.FieldLevel) bool {
			_, ok := journal.ParseSide(fl.Field().String())
			return ok
		}); err != nil {
			validatorsErr = err
			return
		}
		validatorsErr = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
			_, ok := alert.ParseCondition(fl.Field().String())
			return ok
		})
	})
	return validatorsErr
}
