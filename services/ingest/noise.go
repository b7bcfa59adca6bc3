package ingest

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"sensor-fdir/models"
)

// noisyVector draws nominal + N(0, sigma) on the first axes entries.
type noisyVector struct {
	nominal models.Vec3
	axes    int
	noise   distuv.Normal
}

func newNoisyVector(nominal []float64, axes int, sigma float64, seed uint64) noisyVector {
	if axes < 1 || axes > models.MaxAxes {
		axes = models.MaxAxes
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var nom models.Vec3
	for i := range nom {
		nom[i] = 1.0
		if i < len(nominal) {
			nom[i] = nominal[i]
		}
	}
	return noisyVector{
		nominal: nom,
		axes:    axes,
		noise:   distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)},
	}
}

func (v *noisyVector) draw(now time.Time) models.Sample {
	var vals models.Vec3
	for i := 0; i < v.axes; i++ {
		vals[i] = v.nominal[i] + v.noise.Rand()
	}
	return models.Sample{Timestamp: now, Values: vals, Axes: v.axes}
}
