package web

import (
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"video-transcriber/internal/domain"
)

var registerOnce sync.Once

// registerValidators adds the model_tier and language tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("model_tier", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseModelTier(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseLanguage(fl.Field().String())
			return err == nil
		})
	})
}

// transcribeForm holds the per-run options of an upload form.
type transcribeForm struct {
	Model    string `form:"model" binding:"omitempty,model_tier"`
	Language string `form:"language" binding:"omitempty,language"`
}

// downloadForm carries the transcript back for download.
type downloadForm struct {
	RunID      string `form:"run" binding:"omitempty,uuid"`
	Transcript string `form:"transcript"`
	FileName   string `form:"filename" binding:"max=512"`
}

// eventsQuery is the cursor of an events poll.
type eventsQuery struct {
	Since int64 `form:"since" binding:"min=0"`
}

// bindingError converts validator errors into an invalid input error.
func bindingError(err error) *APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidInput(err.Error(), nil)
	}

	fields := make(map[string]any, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		msg := formatValidationError(fe)
		fields[field] = msg
		messages = append(messages, field+": "+msg)
	}
	return invalidInput(strings.Join(messages, "; "), map[string]any{"fields": fields})
}

// formatValidationError creates a human-readable error message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "model_tier":
		return "must be one of " + joinTiers()
	case "language":
		return "must be one of " + joinLanguages()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "uuid":
		return "must be a UUID"
	default:
		return "is invalid"
	}
}

func joinTiers() string {
	tiers := domain.ModelTiers()
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return strings.Join(out, ", ")
}

func joinLanguages() string {
	langs := domain.Languages()
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = string(l)
	}
	return strings.Join(out, ", ")
}
