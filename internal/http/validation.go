package http

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"meetup-sync/internal/domain"
)

const calendarDayTag = "calday"

var registerOnce sync.Once

// registerValidators agrega al motor de binding de gin el tag calday, que
// acepta cualquier fecha que ParseCalendarDay sepa interpretar.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation(calendarDayTag, func(fl validator.FieldLevel) bool {
			_, err := domain.ParseCalendarDay(fl.Field().String())
			return err == nil
		})
	})
}

// hasTagFailure indica si err es un error de validacion causado por tag.
func hasTagFailure(err error, tag string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == tag {
			return true
		}
	}
	return false
}
