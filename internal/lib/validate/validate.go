package validate

import (
	"github.com/go-playground/validator/v10"
	"sync"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct validates a struct using its `validate` tags.
func Struct(s interface{}) error {
	return get().Struct(s)
}
