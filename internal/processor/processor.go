// Package processor runs one classification request end to end and records
// the derived metrics on the point of sale.
package processor

import (
	"context"
	"time"

	"pos-voice-relay/internal/kpi"
	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/pipeline"
	"pos-voice-relay/internal/types"
)

// MetricsWriter persists metrics for a point of sale.
type MetricsWriter interface {
	UpdateMetrics(ctx context.Context, id string, m types.Metrics) error
}

// Runner is the staged download/transcribe/classify pipeline.
type Runner interface {
	Run(ctx context.Context, audioURL string) (pipeline.Result, error)
}

type Processor struct {
	runner  Runner
	store   MetricsWriter
	log     *logger.Logger
	metrics *metrics.Manager
}

func New(r Runner, store MetricsWriter, log *logger.Logger, m *metrics.Manager) *Processor {
	return &Processor{runner: r, store: store, log: log.Component("processor"), metrics: m}
}

// Process classifies the audio and, when PuntoID is set, writes the metrics.
// A failed write is logged only; the classification is still returned.
func (p *Processor) Process(ctx context.Context, req types.ClassifyRequest) (types.ClassifyResponse, error) {
	start := time.Now()
	log := p.log.WithField("audio_url", req.AudioURL).WithField("punto_id", req.PuntoID)

	res, err := p.runner.Run(ctx, req.AudioURL)
	if err != nil {
		log.WithField("error", err.Error()).Warn("pipeline failed")
		return types.ClassifyResponse{}, err
	}

	m := kpi.Calculate(kpi.ScoreSet(res.Classification))
	out := types.ClassifyResponse{
		Texto:         res.Transcript,
		Clasificacion: res.Classification,
		Metricas:      &m,
	}

	if req.PuntoID != "" && p.store != nil {
		werr := p.store.UpdateMetrics(ctx, req.PuntoID, m)
		p.metrics.RecordStoreWrite("update_metrics", werr)
		if werr != nil {
			log.WithField("error", werr.Error()).Error("metrics update failed")
		}
	}

	log.WithField("nps", m.NPS).
		WithField("fillfoundrate", m.FillFoundRate).
		WithField("damage_rate", m.DamageRate).
		WithField("out_of_stock", m.OutOfStock).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("classification finished")
	return out, nil
}
