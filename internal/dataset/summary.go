package dataset

import (
	"errors"

	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
)

// Summary counts what a bulk load did. Skipped items are also counted in Failed.
type Summary struct {
	Total    int `json:"total"`
	Upserted int `json:"upserted"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

func (s *Summary) add(m *metrics.Manager, loader string, err error) {
	switch {
	case err == nil:
		s.Upserted++
		m.RecordLoaderItem(loader, metrics.OutcomeOK)
	case errors.Is(err, ErrSkipped):
		s.Failed++
		s.Skipped++
		m.RecordLoaderItem(loader, metrics.OutcomeSkipped)
	default:
		s.Failed++
		m.RecordLoaderItem(loader, metrics.OutcomeError)
	}
}

func (s Summary) log(l *logger.Logger) {
	l.WithFields(map[string]interface{}{
		"total":    s.Total,
		"upserted": s.Upserted,
		"failed":   s.Failed,
		"skipped":  s.Skipped,
	}).Info("load complete")
}
