// Package kpi turns zero-shot label scores into the point-of-sale KPIs.
package kpi

import (
	"math"

	"pos-voice-relay/internal/types"
)

// Labels read by the formulas.
const (
	LabelSatisfaction    = "Satisfacción del cliente"
	LabelStaffAttention  = "Buena atención del personal"
	LabelFullAssortment  = "Surtido completo de productos"
	LabelHighFootfall    = "Alta afluencia de clientes"
	LabelDamaged         = "Producto dañado o defectuoso"
	LabelUnavailable     = "Producto faltante o no disponible"
	LabelAssortmentIssue = "Problemas de surtido"
)

// Formula names one metric and the labels averaged into it.
type Formula struct {
	Metric string
	Labels []string
}

// Formulas lists every metric in output order.
var Formulas = []Formula{
	{Metric: "nps", Labels: []string{LabelSatisfaction, LabelStaffAttention}},
	{Metric: "fillfoundrate", Labels: []string{LabelFullAssortment, LabelHighFootfall}},
	{Metric: "damage_rate", Labels: []string{LabelDamaged}},
	{Metric: "out_of_stock", Labels: []string{LabelUnavailable, LabelAssortmentIssue}},
}

// Calculate derives the four metrics from a label->score set.
// A label that is absent or not a finite number is left out of its average;
// a metric with no usable label is 0.
func Calculate(scores map[string]float64) types.Metrics {
	values := make(map[string]float64, len(Formulas))
	for _, f := range Formulas {
		values[f.Metric] = percent(average(scores, f.Labels))
	}
	return types.Metrics{
		NPS:           values["nps"],
		FillFoundRate: values["fillfoundrate"],
		DamageRate:    values["damage_rate"],
		OutOfStock:    values["out_of_stock"],
	}
}

// MissingLabels returns formula labels absent from candidates, in formula order.
func MissingLabels(candidates []string) []string {
	have := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		have[c] = true
	}
	var missing []string
	for _, f := range Formulas {
		for _, l := range f.Labels {
			if !have[l] {
				missing = append(missing, l)
			}
		}
	}
	return missing
}

// ScoreSet zips parallel label/score arrays. Entries past the shorter
// array are ignored.
func ScoreSet(c types.Classification) map[string]float64 {
	n := len(c.Labels)
	if len(c.Scores) < n {
		n = len(c.Scores)
	}
	out := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		out[c.Labels[i]] = c.Scores[i]
	}
	return out
}

func average(scores map[string]float64, labels []string) float64 {
	var sum float64
	var n int
	for _, l := range labels {
		v, ok := scores[l]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func percent(v float64) float64 {
	return math.Round(v*100*100) / 100
}
