// Package pipeline runs download -> transcribe -> classify as explicit stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"pos-voice-relay/internal/audio"
	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/types"
)

// Stage names one fallible step.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageClassify   Stage = "classify"
)

// StageError tags a failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*audio.File, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (types.Classification, error)
}

// Result is the output of a successful run.
type Result struct {
	Transcript     string
	Classification types.Classification
}

// Pipeline wires the three stages. Labels and Language are fixed at startup.
type Pipeline struct {
	fetcher     Fetcher
	transcriber Transcriber
	classifier  Classifier
	labels      []string
	language    string
	log         *logger.Logger
	metrics     *metrics.Manager
}

func New(f Fetcher, t Transcriber, c Classifier, labels []string, language string, log *logger.Logger, m *metrics.Manager) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		transcriber: t,
		classifier:  c,
		labels:      labels,
		language:    language,
		log:         log.Component("pipeline"),
		metrics:     m,
	}
}

// Run executes the stages in order. The downloaded file is removed before
// Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, audioURL string) (Result, error) {
	var res Result

	var file *audio.File
	err := p.stage(StageDownload, func() (err error) {
		file, err = p.fetcher.Fetch(ctx, audioURL)
		return err
	})
	if err != nil {
		return res, err
	}
	defer func() {
		if rmErr := file.Remove(); rmErr != nil {
			p.log.WithError(rmErr).WithField("path", file.Path).Warn("temp audio cleanup failed")
		}
	}()

	err = p.stage(StageTranscribe, func() error {
		fh, err := file.Open()
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer fh.Close()
		res.Transcript, err = p.transcriber.Transcribe(ctx, fh, file.Name(), p.language)
		return err
	})
	if err != nil {
		return res, err
	}

	err = p.stage(StageClassify, func() (err error) {
		res.Classification, err = p.classifier.Classify(ctx, res.Transcript, p.labels)
		return err
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) stage(s Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	p.metrics.ObserveStage(string(s), d, err)

	entry := p.log.WithField("stage", string(s)).WithField("duration_ms", d.Milliseconds())
	if err != nil {
		entry.WithField("error", err.Error()).Warn("stage failed")
		return &StageError{Stage: s, Err: err}
	}
	entry.Debug("stage finished")
	return nil
}
