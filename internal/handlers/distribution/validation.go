package distribution

import (
	"fmt"

	"leadflow-service/internal/domain/contact"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom binding rules used by request DTOs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("reportable_status", func(fl validator.FieldLevel) bool {
		return contact.AssignmentStatus(fl.Field().String()).Reportable()
	})
}
