package domain

import (
	"fmt"
	"strings"
)

// RunStatus tracks each pipeline stage for a single transcription run.
type RunStatus string

const (
	RunStatusIdle           RunStatus = "idle"
	RunStatusEncoderCheck   RunStatus = "encoder_check"
	RunStatusAwaitingUpload RunStatus = "awaiting_upload"
	RunStatusExtracting     RunStatus = "extracting"
	RunStatusTranscribing   RunStatus = "transcribing"
	RunStatusDone           RunStatus = "done"
	RunStatusFailed         RunStatus = "failed"
)

// Progress returns the percentage shown for a status in the UI.
func (s RunStatus) Progress() int {
	switch s {
	case RunStatusExtracting:
		return 25
	case RunStatusTranscribing:
		return 50
	case RunStatusDone:
		return 100
	default:
		return 0
	}
}

// ModelTier is one of the fixed Whisper model sizes, ordered fastest to most accurate.
type ModelTier string

const (
	ModelTierTiny   ModelTier = "tiny"
	ModelTierBase   ModelTier = "base"
	ModelTierSmall  ModelTier = "small"
	ModelTierMedium ModelTier = "medium"
	ModelTierLarge  ModelTier = "large"
)

var modelTiers = []ModelTier{
	ModelTierTiny,
	ModelTierBase,
	ModelTierSmall,
	ModelTierMedium,
	ModelTierLarge,
}

// ModelTiers lists every tier from fastest to most accurate.
func ModelTiers() []ModelTier {
	out := make([]ModelTier, len(modelTiers))
	copy(out, modelTiers)
	return out
}

// ParseModelTier maps user input to a known tier.
func ParseModelTier(raw string) (ModelTier, error) {
	tier := ModelTier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return "", fmt.Errorf("unknown model tier %q (want one of %s)", raw, joinValues(modelTiers))
	}
	return tier, nil
}

// Valid reports whether t is one of the fixed tiers.
func (t ModelTier) Valid() bool {
	for _, known := range modelTiers {
		if t == known {
			return true
		}
	}
	return false
}

// Label is the upper-case tier name used in result summaries.
func (t ModelTier) Label() string {
	return strings.ToUpper(string(t))
}

// Language is one of the fixed language hints passed to the model.
type Language string

const (
	LanguagePortuguese Language = "pt"
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
	LanguageFrench     Language = "fr"
	LanguageGerman     Language = "de"
	LanguageItalian    Language = "it"
)

var languages = []Language{
	LanguagePortuguese,
	LanguageEnglish,
	LanguageSpanish,
	LanguageFrench,
	LanguageGerman,
	LanguageItalian,
}

var languageNames = map[Language]string{
	LanguagePortuguese: "Portuguese",
	LanguageEnglish:    "English",
	LanguageSpanish:    "Spanish",
	LanguageFrench:     "French",
	LanguageGerman:     "German",
	LanguageItalian:    "Italian",
}

// Languages lists every supported language hint.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// ParseLanguage maps user input to a known language hint.
func ParseLanguage(raw string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(raw)))
	if !lang.Valid() {
		return "", fmt.Errorf("unknown language %q (want one of %s)", raw, joinValues(languages))
	}
	return lang, nil
}

// Valid reports whether l is one of the fixed language hints.
func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// DisplayName returns the human readable language name.
func (l Language) DisplayName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// FailureKind classifies why a run stopped.
type FailureKind string

const (
	FailureEncoderUnavailable        FailureKind = "encoder_unavailable"
	FailureUploadRejected            FailureKind = "upload_rejected"
	FailureWorkspace                 FailureKind = "workspace_error"
	FailureExtractionTimeout         FailureKind = "extraction_timeout"
	FailureExtractionProcessError    FailureKind = "extraction_process_error"
	FailureExtractionUnexpectedError FailureKind = "extraction_unexpected_error"
	FailureTranscription             FailureKind = "transcription_error"
)

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
