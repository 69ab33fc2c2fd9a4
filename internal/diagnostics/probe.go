package diagnostics

import (
	"context"
	"strings"
	"sync"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/logging"
	"video-transcriber/internal/runner"
)

const defaultProbeTimeout = 10 * time.Second

// EncoderProbe finds the first working ffmpeg candidate and remembers the answer.
type EncoderProbe struct {
	candidates []string
	timeout    time.Duration
	runner     runner.Runner
	goos       string
	now        func() time.Time
	log        *logging.Logger

	once   sync.Once
	status domain.EncoderStatus
}

// NewEncoderProbe builds a probe using real process execution.
func NewEncoderProbe(candidates []string, timeout time.Duration, log *logging.Logger) *EncoderProbe {
	return NewEncoderProbeForTests(candidates, timeout, runner.NewExec(), currentGOOS(), log)
}

// NewEncoderProbeForTests creates a probe with injectable dependencies.
func NewEncoderProbeForTests(
	candidates []string,
	timeout time.Duration,
	run runner.Runner,
	goos string,
	log *logging.Logger,
) *EncoderProbe {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &EncoderProbe{
		candidates: append([]string(nil), candidates...),
		timeout:    timeout,
		runner:     run,
		goos:       goos,
		now:        time.Now,
		log:        log.WithComponent("encoder-probe"),
	}
}

// Probe returns the encoder status, running the candidates only on first call.
func (p *EncoderProbe) Probe(ctx context.Context) domain.EncoderStatus {
	p.once.Do(func() {
		p.status = p.run(ctx)
	})
	return p.status
}

// run tries each candidate with -version until one exits successfully.
func (p *EncoderProbe) run(ctx context.Context) domain.EncoderStatus {
	status := domain.EncoderStatus{Tried: make([]string, 0, len(p.candidates))}

	for _, candidate := range p.candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		status.Tried = append(status.Tried, candidate)

		// Detached: a cancelled request must not poison the memoized result.
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		res, err := p.runner.Run(probeCtx, candidate, "-version")
		cancel()
		if err != nil {
			p.log.Debug("encoder candidate rejected", logging.Fields(
				"candidate", candidate,
				"exit_code", res.ExitCode,
				"error", err,
			))
			continue
		}

		status.Available = true
		status.Path = candidate
		status.CheckedAt = p.now().UTC()
		p.log.Info("encoder found", logging.Fields("path", candidate, "version", firstLine(res.Stdout)))
		return status
	}

	status.Hint = RemediationFor(p.goos)
	status.CheckedAt = p.now().UTC()
	p.log.Warn("no working encoder found", logging.Fields("tried", status.Tried))
	return status
}

// Report renders the encoder status as a diagnostic report.
func Report(status domain.EncoderStatus) domain.DiagnosticReport {
	item := domain.DiagnosticItem{
		ID:   "tool_ffmpeg",
		Name: "ffmpeg",
	}
	if status.Available {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Found at " + status.Path
	} else {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "FFmpeg not found. Tried: " + strings.Join(status.Tried, ", ")
		item.Hint = status.Hint
	}

	return domain.DiagnosticReport{
		GeneratedAt: status.CheckedAt,
		HasFailures: !status.Available,
		Items:       []domain.DiagnosticItem{item},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
