package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"video-transcriber/internal/diagnostics"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/pipeline"
)

const (
	sessionCookie = "vt_session"
	uploadField   = "video"
)

// Pipeline is the transcription flow driven by the handlers.
type Pipeline interface {
	CheckEncoder(ctx context.Context) domain.EncoderStatus
	Run(ctx context.Context, upload pipeline.Upload, opts pipeline.Options) (pipeline.Result, error)
	Extensions() []string
	MaxUploadBytes() int64
}

// HandlerConfig carries defaults shown by the UI.
type HandlerConfig struct {
	DefaultTier     domain.ModelTier
	DefaultLanguage domain.Language
	ModelDir        string
	Backend         string
	SecureCookie    bool
}

// Handlers serves the HTML page and the JSON API.
type Handlers struct {
	cfg      HandlerConfig
	pipeline Pipeline
	sessions *jobs.Sessions
	events   *jobs.EventBus
	page     *template.Template
	log      *logging.Logger
}

// NewHandlers parses index.html from assets and builds the handlers.
func NewHandlers(cfg HandlerConfig, p Pipeline, sessions *jobs.Sessions, events *jobs.EventBus, assets fs.FS, log *logging.Logger) (*Handlers, error) {
	if log == nil {
		log = logging.Nop()
	}
	if !cfg.DefaultTier.Valid() {
		cfg.DefaultTier = domain.ModelTierMedium
	}
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = domain.LanguagePortuguese
	}
	page, err := template.ParseFS(assets, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Handlers{
		cfg:      cfg,
		pipeline: p,
		sessions: sessions,
		events:   events,
		page:     page,
		log:      log.WithComponent("web"),
	}, nil
}

// Index renders the page after re-checking the encoder.
func (h *Handlers) Index(c *gin.Context) {
	session := h.session(c)
	tier, lang := h.selection(c.Query("model"), c.Query("language"))

	encoder := h.pipeline.CheckEncoder(c.Request.Context())
	run := session.Manager.Render(encoder)
	h.render(c, http.StatusOK, h.newPage(encoder, run, tier, lang))
}

// Transcribe runs the pipeline for a form submission and renders the outcome.
func (h *Handlers) Transcribe(c *gin.Context) {
	session := h.session(c)

	var form transcribeForm
	bindErr := c.ShouldBind(&form)
	tier, lang := h.selection(form.Model, form.Language)
	encoder := h.pipeline.CheckEncoder(c.Request.Context())

	if bindErr != nil {
		apiErr := toAPIError(h.uploadFailure(bindErr, ""))
		page := h.newPage(encoder, session.Manager.Render(encoder), tier, lang)
		page.Failure = &pipeline.StageError{
			Kind:    domain.FailureUploadRejected,
			Stage:   domain.RunStatusAwaitingUpload,
			Message: apiErr.Message,
		}
		h.render(c, apiErr.HTTPStatus, page)
		return
	}

	outcome, err := h.execute(c, session, tier, lang)
	page := h.newPage(encoder, session.Manager.Current(), tier, lang)
	page.Upload = outcome.upload
	if err != nil {
		stageErr, ok := pipeline.AsStageError(err)
		if !ok {
			apiErr := toAPIError(err)
			stageErr = &pipeline.StageError{Message: apiErr.Message, Stage: page.Run.Status}
		}
		page.Failure = stageErr
		page.Progress = stageErr.Stage.Progress()
		h.render(c, toAPIError(err).HTTPStatus, page)
		return
	}

	page.Result = &outcome.result
	page.Progress = domain.RunStatusDone.Progress()
	h.render(c, http.StatusOK, page)
}

// Download returns the transcript as a text attachment. The text kept for the
// session's run is preferred; the posted copy is used when it expired.
func (h *Handlers) Download(c *gin.Context) {
	var form downloadForm
	if err := c.ShouldBind(&form); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	fileName, text := form.FileName, normalizeNewlines(form.Transcript)
	if kept, ok := h.session(c).Transcript(form.RunID); ok {
		fileName, text = kept.FileName, kept.Text
	}

	c.Header("Content-Disposition", contentDisposition(pipeline.DownloadName(fileName)))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// Health reports liveness plus encoder availability.
func (h *Handlers) Health(c *gin.Context) {
	encoder := h.pipeline.CheckEncoder(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"encoder": encoder.Available,
		"backend": h.cfg.Backend,
	})
}

// Diagnostics returns the encoder check as a report.
func (h *Handlers) Diagnostics(c *gin.Context) {
	encoder := h.pipeline.CheckEncoder(c.Request.Context())
	respondOK(c, diagnostics.Report(encoder))
}

// Options lists models, languages and upload limits.
func (h *Handlers) Options(c *gin.Context) {
	limit := h.pipeline.MaxUploadBytes()
	respondOK(c, optionsView{
		Models:          h.tierOptions(h.cfg.DefaultTier),
		Languages:       languageOptions(h.cfg.DefaultLanguage),
		Extensions:      h.pipeline.Extensions(),
		MaxUploadBytes:  limit,
		MaxUploadLabel:  maxSizeLabel(limit),
		DefaultModel:    h.cfg.DefaultTier,
		DefaultLanguage: h.cfg.DefaultLanguage,
		Backend:         h.cfg.Backend,
	})
}

// CreateTranscription runs the pipeline and answers JSON.
func (h *Handlers) CreateTranscription(c *gin.Context) {
	session := h.session(c)

	var form transcribeForm
	if err := c.ShouldBind(&form); err != nil {
		respondWithError(c, h.uploadFailure(err, ""))
		return
	}
	tier, lang := h.selection(form.Model, form.Language)

	outcome, err := h.execute(c, session, tier, lang)
	if err != nil {
		apiErr := toAPIError(err)
		if outcome.runID != "" {
			apiErr.Details = mergeDetails(apiErr.Details, map[string]any{"runId": outcome.runID})
		}
		respondWithError(c, apiErr)
		return
	}

	respondOK(c, gin.H{
		"runId":  outcome.runID,
		"result": outcome.result,
	})
}

// RunEvents returns the progress events of a run after the since cursor.
func (h *Handlers) RunEvents(c *gin.Context) {
	var query eventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	runID := c.Param("id")
	if _, err := uuid.Parse(runID); err != nil {
		respondWithError(c, invalidInput("run id must be a UUID", map[string]any{"id": runID}))
		return
	}

	events := h.events.RunSince(runID, query.Since)
	if len(events) == 0 && query.Since == 0 {
		respondWithError(c, notFound("run", runID))
		return
	}
	respondOK(c, gin.H{"events": events})
}

// CurrentRun returns the caller's run with its events after the since cursor.
// The page polls it while its upload is being processed.
func (h *Handlers) CurrentRun(c *gin.Context) {
	var query eventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	run := h.session(c).Manager.Current()
	events := []jobs.Event{}
	if run.ID != "" {
		if found := h.events.RunSince(run.ID, query.Since); found != nil {
			events = found
		}
	}
	respondOK(c, gin.H{
		"run":      run,
		"progress": run.Status.Progress(),
		"events":   events,
	})
}

// runOutcome is what execute produced, even on failure.
type runOutcome struct {
	runID  string
	upload *uploadInfo
	result pipeline.Result
}

// execute claims the session, runs the pipeline, and records progress.
func (h *Handlers) execute(c *gin.Context, session *jobs.Session, tier domain.ModelTier, lang domain.Language) (runOutcome, error) {
	var outcome runOutcome

	header, err := c.FormFile(uploadField)
	if err != nil {
		return outcome, h.uploadFailure(err, "No file selected")
	}
	outcome.upload = &uploadInfo{Name: header.Filename, SizeLabel: pipeline.SizeLabel(header.Size)}

	runID := uuid.NewString()
	if err := session.Manager.Start(runID, session.ID); err != nil {
		return outcome, err
	}
	outcome.runID = runID

	log := h.log.WithFields(logging.Fields(
		logging.FieldRunID, runID,
		logging.FieldSessionID, session.ID,
		"model", string(tier),
		"language", string(lang),
	))

	file, err := header.Open()
	if err != nil {
		stageErr := &pipeline.StageError{
			Kind:    domain.FailureWorkspace,
			Stage:   domain.RunStatusAwaitingUpload,
			Message: "Unexpected error: " + err.Error(),
			Err:     err,
		}
		h.fail(session, runID, stageErr, log)
		return outcome, stageErr
	}
	defer file.Close()

	result, err := h.pipeline.Run(c.Request.Context(), pipeline.Upload{
		Name: header.Filename,
		Size: header.Size,
		Body: file,
	}, pipeline.Options{
		Tier:     tier,
		Language: lang,
		OnStage: func(status domain.RunStatus) {
			if tErr := session.Manager.Transition(status); tErr != nil {
				log.Warn("run transition rejected", logging.Fields("status", string(status), "error", tErr))
			}
			eventType := jobs.EventTypeStatus
			if status == domain.RunStatusDone {
				eventType = jobs.EventTypeResult
			}
			h.events.Publish(jobs.Event{RunID: runID, SessionID: session.ID, Type: eventType, Status: status})
		},
	})
	if err != nil {
		stageErr, ok := pipeline.AsStageError(err)
		if !ok {
			stageErr = &pipeline.StageError{Kind: domain.FailureExtractionUnexpectedError, Message: err.Error(), Err: err}
		}
		h.fail(session, runID, stageErr, log)
		return outcome, err
	}

	outcome.result = result
	session.KeepTranscript(jobs.Transcript{RunID: runID, FileName: header.Filename, Text: result.Transcript})
	log.Info("run completed", logging.Fields("words", result.WordCount, "chars", result.CharCount))
	return outcome, nil
}

func (h *Handlers) fail(session *jobs.Session, runID string, stageErr *pipeline.StageError, log *logging.Logger) {
	if err := session.Manager.Fail(stageErr.Kind, stageErr.Message); err != nil {
		log.Warn("run failure transition rejected", logging.Fields("error", err))
	}
	h.events.Publish(jobs.Event{
		RunID:     runID,
		SessionID: session.ID,
		Type:      jobs.EventTypeError,
		Status:    domain.RunStatusFailed,
		Progress:  stageErr.Stage.Progress(),
		Message:   stageErr.Message,
		Failure:   stageErr.Kind,
	})
	log.Warn("run failed", logging.Fields("kind", string(stageErr.Kind), "stage", string(stageErr.Stage), "message", stageErr.Message))
}

// session returns the caller's session, issuing a cookie on first visit.
func (h *Handlers) session(c *gin.Context) *jobs.Session {
	id, err := c.Cookie(sessionCookie)
	if _, parseErr := uuid.Parse(id); err != nil || parseErr != nil {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, int(jobs.DefaultSessionTTL.Seconds()), "/", "", h.cfg.SecureCookie, true)
	}
	return h.sessions.Get(id)
}

// selection parses form values, falling back to the configured defaults.
func (h *Handlers) selection(rawTier, rawLang string) (domain.ModelTier, domain.Language) {
	tier, err := domain.ParseModelTier(rawTier)
	if err != nil {
		tier = h.cfg.DefaultTier
	}
	lang, err := domain.ParseLanguage(rawLang)
	if err != nil {
		lang = h.cfg.DefaultLanguage
	}
	return tier, lang
}

func (h *Handlers) render(c *gin.Context, status int, page pageView) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(c.Writer, page); err != nil {
		h.log.Error("render page", logging.Fields("error", err))
	}
}

// normalizeNewlines undoes the CRLF line breaks browsers submit for textareas.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func mergeDetails(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// contentDisposition builds an attachment header with a quoted ASCII
// filename and an RFC 5987 variant when the name is not plain ASCII.
func contentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r < 0x20 || r == 0x7f:
			return -1
		case r > 0x7e:
			return '_'
		default:
			return r
		}
	}, name)
	header := fmt.Sprintf("attachment; filename=%q", ascii)
	if ascii != name {
		header += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return header
}

// uploadFailure classifies a body read error of an upload form.
func (h *Handlers) uploadFailure(err error, fallback string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &pipeline.StageError{
			Kind:    domain.FailureUploadRejected,
			Stage:   domain.RunStatusAwaitingUpload,
			Message: fmt.Sprintf("File is too large (limit %s)", maxSizeLabel(h.pipeline.MaxUploadBytes())),
			Err:     err,
		}
	}
	if fallback == "" {
		return bindingError(err)
	}
	return &pipeline.StageError{
		Kind:    domain.FailureUploadRejected,
		Stage:   domain.RunStatusAwaitingUpload,
		Message: fallback,
		Err:     err,
	}
}
