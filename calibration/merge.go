package calibration

import "math"

// Merge combines two models, weighting each by its Confidence.
//
// Ranges only ever widen: the merged min is the lesser of old.Min and the
// weighted min, likewise for max. Ideals, weights, bias, threshold, blend and scale
// are confidence-weighted averages. An ideal set on only one side survives as is.
// The merged Confidence is the sum of both, capped at weightCap when weightCap > 0.
//
// A nil side yields a clone of the other. Neither input is modified.
func Merge(old, next *Model, weightCap float64) *Model {
	switch {
	case old == nil && next == nil:
		return nil
	case old == nil:
		return capped(next.Clone(), weightCap)
	case next == nil:
		return capped(old.Clone(), weightCap)
	}

	wo, wn := math.Max(old.Confidence, 0), math.Max(next.Confidence, 0)
	total := wo + wn
	if total == 0 {
		wo, wn, total = 1, 1, 2
	}
	avg := func(a, b float64) float64 {
		return (a*wo + b*wn) / total
	}

	out := &Model{}
	op, np := old.Params(), next.Params()
	for i, p := range out.Params() {
		o, n := op[i], np[i]
		p.Min = math.Min(o.Min, avg(o.Min, n.Min))
		p.Max = math.Max(o.Max, avg(o.Max, n.Max))
		p.Weight = avg(o.Weight, n.Weight)
		switch {
		case o.Ideal != nil && n.Ideal != nil:
			v := avg(*o.Ideal, *n.Ideal)
			p.Ideal = &v
		case o.Ideal != nil:
			v := *o.Ideal
			p.Ideal = &v
		case n.Ideal != nil:
			v := *n.Ideal
			p.Ideal = &v
		}
	}
	out.ModeBias = avg(old.ModeBias, next.ModeBias)
	out.ConfidenceThreshold = avg(old.ConfidenceThreshold, next.ConfidenceThreshold)
	out.StrategyBlend = avg(old.StrategyBlend, next.StrategyBlend)
	out.Scale = avg(old.Scale, next.Scale)
	out.Confidence = old.Confidence + next.Confidence
	out.Clip()
	return capped(out, weightCap)
}

func capped(m *Model, weightCap float64) *Model {
	if weightCap > 0 && m.Confidence > weightCap {
		m.Confidence = weightCap
	}
	return m
}

// MergeAll chain-merges models left to right, skipping nils.
// It returns nil if there is nothing to merge.
func MergeAll(models []*Model, weightCap float64) *Model {
	var out *Model
	for _, m := range models {
		if m == nil {
			continue
		}
		out = Merge(out, m, weightCap)
	}
	return out
}
