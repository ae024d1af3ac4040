package model

import (
	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes validation quality of the multi-label classifier at the
// 0.5 decision threshold.
type Metrics struct {
	// SubsetAccuracy is the fraction of examples where every label matches.
	SubsetAccuracy float64
	// PerLabelAccuracy is the mean over labels of per-label accuracy.
	PerLabelAccuracy float64
}

// Evaluate thresholds sigmoid probabilities at 0.5 and compares against the
// one-hot targets. Each class is judged independently.
func Evaluate(probs [][]float32, labels [][]int32) Metrics {
	if len(probs) == 0 || len(labels) == 0 {
		return Metrics{}
	}
	numClasses := len(labels[0])

	exact := make([]float64, len(probs))
	labelAcc := make([]float64, numClasses)
	for j := 0; j < numClasses; j++ {
		correct := 0
		for i := range probs {
			if predicted(probs[i][j]) == labels[i][j] {
				correct++
			}
		}
		labelAcc[j] = float64(correct) / float64(len(probs))
	}
	for i := range probs {
		allMatch := 1.0
		for j := 0; j < numClasses; j++ {
			if predicted(probs[i][j]) != labels[i][j] {
				allMatch = 0
				break
			}
		}
		exact[i] = allMatch
	}

	return Metrics{
		SubsetAccuracy:   stat.Mean(exact, nil),
		PerLabelAccuracy: stat.Mean(labelAcc, nil),
	}
}

func predicted(p float32) int32 {
	if p >= 0.5 {
		return 1
	}
	return 0
}
