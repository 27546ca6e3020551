package server

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"calixo/internal/model"
	"calixo/internal/shop"
)

// RegisterValidators adds the domain validation tags used by request types.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return registerValidators(v)
}

func registerValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("challengetype", func(fl validator.FieldLevel) bool {
		return model.ChallengeType(fl.Field().String()).Valid()
	}); err != nil {
		return fmt.Errorf("failed to register challengetype: %w", err)
	}
	if err := v.RegisterValidation("itemcategory", func(fl validator.FieldLevel) bool {
		return shop.ValidCategory(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("failed to register itemcategory: %w", err)
	}
	return nil
}
