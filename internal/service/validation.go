package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

// NewValidator returns a validator with the clock and weekday tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := models.ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}
