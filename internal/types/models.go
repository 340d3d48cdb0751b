package types

import (
	"encoding/json"
	"fmt"
)

// ClassifyRequest is the body of POST /audio-clasificar.
type ClassifyRequest struct {
	AudioURL string `json:"audioUrl"`
	PuntoID  string `json:"punto_id,omitempty"`
}

// Classification mirrors the zero-shot response: parallel label/score arrays.
type Classification struct {
	Sequence string    `json:"sequence,omitempty"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

// Metrics are the four derived KPIs, percentages rounded to 2 decimals.
type Metrics struct {
	NPS           float64 `json:"nps"`
	FillFoundRate float64 `json:"fillfoundrate"`
	DamageRate    float64 `json:"damage_rate"`
	OutOfStock    float64 `json:"out_of_stock"`
}

// ClassifyResponse is returned to the frontend
type ClassifyResponse struct {
	Texto         string         `json:"texto"`
	Clasificacion Classification `json:"clasificacion"`
	Metricas      *Metrics       `json:"metricas,omitempty"`
}

// UpstreamError carries a non-2xx answer from an external service. Payload
// holds the response body unchanged so it can be relayed to the caller.
type UpstreamError struct {
	Service    string
	StatusCode int
	Payload    json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Service, e.StatusCode, string(e.Payload))
}
