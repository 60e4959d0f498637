package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/raci-tracker/backend/internal/models"
)

// RegisterValidators adds the domain tags used in request bindings to gin's validator:
// raci_type (R, A, C, I) and workflow (sequential, parallel). Field errors report JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("raci_type", func(fl validator.FieldLevel) bool {
		return models.RaciType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("workflow", func(fl validator.FieldLevel) bool {
		w := models.ApprovalWorkflow(fl.Field().String())
		return w == models.WorkflowSequential || w == models.WorkflowParallel
	})
}
