package web

import (
	"strings"

	"github.com/samber/lo"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/pipeline"
	"video-transcriber/internal/transcribe"
)

// tierOption is one entry of the model selector.
type tierOption struct {
	Value       domain.ModelTier `json:"value"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	SizeLabel   string           `json:"sizeLabel"`
	Downloaded  bool             `json:"downloaded"`
	Selected    bool             `json:"-"`
}

// languageOption is one entry of the language selector.
type languageOption struct {
	Value    domain.Language `json:"value"`
	Name     string          `json:"name"`
	Selected bool            `json:"-"`
}

// uploadInfo is the file line shown once a file was submitted.
type uploadInfo struct {
	Name      string
	SizeLabel string
}

// pageView is the data rendered by index.html.
type pageView struct {
	Encoder      domain.EncoderStatus
	Run          domain.Run
	Tiers        []tierOption
	Languages    []languageOption
	SelectedTier tierOption
	Extensions   []string
	Accept       string
	FormatsLabel string
	MaxSizeLabel string
	Backend      string
	Upload       *uploadInfo
	Result       *pipeline.Result
	Failure      *pipeline.StageError
	Progress     int
}

// optionsView is the JSON body of GET /api/v1/options.
type optionsView struct {
	Models          []tierOption     `json:"models"`
	Languages       []languageOption `json:"languages"`
	Extensions      []string         `json:"extensions"`
	MaxUploadBytes  int64            `json:"maxUploadBytes"`
	MaxUploadLabel  string           `json:"maxUploadLabel"`
	DefaultModel    domain.ModelTier `json:"defaultModel"`
	DefaultLanguage domain.Language  `json:"defaultLanguage"`
	Backend         string           `json:"backend"`
}

func (h *Handlers) tierOptions(selected domain.ModelTier) []tierOption {
	return lo.Map(transcribe.Catalog(h.cfg.ModelDir), func(m domain.WhisperModelOption, _ int) tierOption {
		return tierOption{
			Value:       m.Tier,
			Label:       string(m.Tier),
			Description: m.Description,
			SizeLabel:   m.SizeLabel,
			Downloaded:  m.Downloaded,
			Selected:    m.Tier == selected,
		}
	})
}

func languageOptions(selected domain.Language) []languageOption {
	return lo.Map(domain.Languages(), func(l domain.Language, _ int) languageOption {
		return languageOption{Value: l, Name: l.DisplayName(), Selected: l == selected}
	})
}

// newPage builds the base page for the given selections.
func (h *Handlers) newPage(encoder domain.EncoderStatus, run domain.Run, tier domain.ModelTier, lang domain.Language) pageView {
	tiers := h.tierOptions(tier)
	selected, _ := lo.Find(tiers, func(t tierOption) bool { return t.Selected })
	exts := h.pipeline.Extensions()

	return pageView{
		Encoder:      encoder,
		Run:          run,
		Tiers:        tiers,
		Languages:    languageOptions(lang),
		SelectedTier: selected,
		Extensions:   exts,
		Accept: strings.Join(lo.Map(exts, func(ext string, _ int) string {
			return "." + ext
		}), ","),
		FormatsLabel: strings.ToUpper(strings.Join(exts, ", ")),
		MaxSizeLabel: maxSizeLabel(h.pipeline.MaxUploadBytes()),
		Backend:      h.cfg.Backend,
		Progress:     run.Status.Progress(),
	}
}

func maxSizeLabel(limit int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	return pipeline.SizeLabel(limit)
}
