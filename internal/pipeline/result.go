package pipeline

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/workspace"
)

const (
	downloadPrefix = "transcricao_"
	fallbackStem   = "video"
)

var bytesPerMB = decimal.NewFromInt(1024 * 1024)

// Result is the outcome of a successful run.
type Result struct {
	FileName     string           `json:"fileName"`
	SizeLabel    string           `json:"sizeLabel"`
	Fingerprint  string           `json:"fingerprint"`
	Transcript   string           `json:"transcript"`
	WordCount    int              `json:"wordCount"`
	CharCount    int              `json:"charCount"`
	DownloadName string           `json:"downloadName"`
	Tier         domain.ModelTier `json:"model"`
	Language     domain.Language  `json:"language"`
	Empty        bool             `json:"empty"`
	AudioNote    string           `json:"audioNote"`
}

// ModelLabel is the upper-case model name shown beside the counts.
func (r Result) ModelLabel() string {
	return r.Tier.Label()
}

func newResult(fileName string, size int64, fingerprint, transcript string, tier domain.ModelTier, lang domain.Language) Result {
	return Result{
		FileName:     fileName,
		SizeLabel:    SizeLabel(size),
		Fingerprint:  fingerprint,
		Transcript:   transcript,
		WordCount:    WordCount(transcript),
		CharCount:    CharCount(transcript),
		DownloadName: DownloadName(fileName),
		Tier:         tier,
		Language:     lang,
		Empty:        strings.TrimSpace(transcript) == "",
	}
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// CharCount counts Unicode code points.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// DownloadName builds transcricao_<stem>.txt, where stem is the uploaded base
// name up to its first dot.
func DownloadName(uploadName string) string {
	stem := ""
	if strings.TrimSpace(uploadName) != "" {
		stem, _, _ = strings.Cut(workspace.SanitizeName(uploadName), ".")
		stem = strings.TrimSpace(stem)
	}
	if stem == "" {
		stem = fallbackStem
	}
	return downloadPrefix + stem + ".txt"
}

// SizeLabel renders size in megabytes with two decimals.
func SizeLabel(size int64) string {
	return decimal.NewFromInt(size).Div(bytesPerMB).StringFixed(2) + " MB"
}

// Extension returns the lower-case extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
