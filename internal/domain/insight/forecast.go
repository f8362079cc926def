package insight

import (
	"github.com/sparke-study/oracle-service/internal/domain/concept"
)

// ══════════════════════════════════════════════════════════════════════════════
// FORECAST ESTIMATOR
// ══════════════════════════════════════════════════════════════════════════════

const (
	forecastConfidenceFloor   = 0.25
	forecastConfidenceCap     = 0.92
	smallSetConfidencePenalty = 0.05

	// confidenceNudge - сдвиг уверенности по итогам диффа: больше
	// выросших концептов - плюс, больше просевших - минус.
	confidenceNudge = 0.03
)

// EstimateForecast строит прогноз из среднего mastery по графу.
// В режиме SMALLSET уверенность дополнительно снижается.
func EstimateForecast(concepts []concept.Concept, mode concept.Mode) Forecast {
	masteries := make([]float64, 0, len(concepts))
	for _, c := range concepts {
		masteries = append(masteries, c.MasteryScore)
	}
	avg := concept.Average(masteries)

	archetype := "Balanced recall"
	if avg < 0.55 {
		archetype = "Concept-heavy synthesis"
	}

	conf := concept.Round3(concept.Clamp(avg+0.2, forecastConfidenceFloor, forecastConfidenceCap))
	if mode == concept.ModeSmallSet {
		conf = maxFloat(0.2, conf-smallSetConfidencePenalty)
	}

	lowest := lowestMastery(concepts, maxRiskConcepts)
	return Forecast{
		Archetype:          archetype,
		NextExamConfidence: conf,
		Probabilities: []Probability{
			{Label: "Concept recall", Value: concept.Round3(avg)},
			{Label: "Applied reasoning", Value: concept.Round3(avg * 0.8)},
			{Label: "Curveball", Value: concept.Round3(0.4 - avg*0.2)},
		},
		Evidence: ForecastEvidence{
			Mode:          string(mode),
			ConceptCount:  len(concepts),
			LowestMastery: riskCards(lowest),
		},
	}
}

// NudgeConfidence корректирует уверенность прогноза по структуре диффа:
// если выросших концептов больше просевших - небольшой плюс, иначе минус.
// Возвращает прогноз с обновлённым значением; при равенстве не меняет ничего.
func NudgeConfidence(f Forecast, masteryChanges []MasteryChange) Forecast {
	inc, dec := 0, 0
	for _, ch := range masteryChanges {
		switch {
		case ch.Delta > 0:
			inc++
		case ch.Delta < 0:
			dec++
		}
	}

	adj := 0.0
	switch {
	case inc > dec:
		adj = confidenceNudge
	case dec > inc:
		adj = -confidenceNudge
	default:
		return f
	}

	f.NextExamConfidence = concept.Round3(concept.Clamp(f.NextExamConfidence+adj, 0.1, 0.95))
	return f
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
