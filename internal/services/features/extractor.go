package features

import (
	"math"
	"time"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
)

const (
	// MinPrior is the number of prior spins required before a vector is emitted.
	MinPrior = 5
	// Window is the length of the "last 10" aggregates.
	Window = 10
	// GapHorizon bounds gap_since_last; absent numbers report this value.
	GapHorizon = 20
)

// Extract builds the feature vector for spin n arriving at ts, given the
// prior history newest first (n itself excluded). It returns false when fewer
// than MinPrior prior spins exist. Extract is pure.
func Extract(prior []int, n int, ts time.Time) (models.FeatureVector, bool) {
	var f models.FeatureVector
	if len(prior) < MinPrior {
		return f, false
	}
	f.CurrentNumber = float64(n)
	lasts := []*float64{&f.Last1, &f.Last2, &f.Last3}
	for i, dst := range lasts {
		if i < len(prior) {
			*dst = float64(prior[i])
		}
	}

	recent := prior
	if len(recent) > Window {
		recent = recent[:Window]
	}
	for _, v := range recent {
		switch wheel.ColorOf(v) {
		case wheel.Red:
			f.RedCount10++
		case wheel.Black:
			f.BlackCount10++
		case wheel.Green:
			f.GreenCount10++
		}
		switch wheel.SectorOf(v) {
		case wheel.VoisinsZero:
			f.SectorVoisinsZeroCount10++
		case wheel.Tiers:
			f.SectorTiersCount10++
		case wheel.Orphelins:
			f.SectorOrphelinsCount10++
		}
		switch wheel.ParityOf(v) {
		case wheel.Even:
			f.EvenCount10++
		case wheel.Odd:
			f.OddCount10++
		}
	}

	// mean/std need a full window
	if len(recent) == Window {
		f.MeanLast10, f.StdLast10 = meanStd(recent)
	}

	f.GapSinceLast = GapHorizon
	for i, v := range prior {
		if i >= GapHorizon {
			break
		}
		if v == n {
			f.GapSinceLast = float64(i)
			break
		}
	}

	f.Hour = float64(ts.Hour())
	f.Minute = float64(ts.Minute())
	return f, true
}

// meanStd returns the arithmetic mean and population standard deviation.
func meanStd(xs []int) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += float64(x)
	}
	mean := sum / float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		d := float64(x) - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
