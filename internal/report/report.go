// Package report defines the speech-analysis report schema produced by the
// oracle, its strict decoder, and metric extraction for milestone
// evaluation.
//
// The wire format keeps the Portuguese field names of the product's original
// analysis schema; stored sessions and oracle prompts share them. Every
// sub-report is optional: a nil pointer means the oracle produced no data
// for that dimension, which consumers must treat as "unknown", never as a
// zero score.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates that an oracle reply failed strict schema
// validation. Malformed replies are rejected wholesale; no partially valid
// report is ever extracted from one.
var ErrMalformedResponse = errors.New("report: malformed oracle response")

// Report is the full analysis of one recording. All sub-reports are
// optional.
type Report struct {
	Clarity     *Clarity     `json:"clareza,omitempty"`
	FillerWords []FillerWord `json:"palavrasPreenchimento,omitempty"`
	Rhythm      string       `json:"ritmo,omitempty"`
	Strengths   string       `json:"forca,omitempty"`
	Optimized   string       `json:"textoOtimizado,omitempty"`
	Pace        *Pace        `json:"wpm,omitempty"`
	Intonation  *Intonation  `json:"entonação,omitempty"`
	Pauses      *Pauses      `json:"pausas,omitempty"`
	Structure   *Structure   `json:"estrutura,omitempty"`
	Vocabulary  *Vocabulary  `json:"vocabularioETom,omitempty"`
	Tone        *Tone        `json:"tomDeVoz,omitempty"`
	Evolution   *Evolution   `json:"evolucao,omitempty"`
	Benchmark   *Benchmark   `json:"benchmarkAnalysis,omitempty"`
}

// Clarity scores how clearly the ideas came across, on a 0–10 scale.
type Clarity struct {
	Score     float64 `json:"nota"`
	Rationale string  `json:"justificativa"`
}

// FillerWord is one crutch word and how often it appeared.
type FillerWord struct {
	Word  string `json:"palavra"`
	Count int    `json:"contagem"`
}

// Pace reports speaking speed in words per minute.
type Pace struct {
	Value    float64 `json:"valor"`
	Analysis string  `json:"analise"`
}

// Intonation reports pitch variance across the recording.
type Intonation struct {
	Variance float64 `json:"variacao"`
	Analysis string  `json:"analise"`
}

// Pauses reports pause usage.
type Pauses struct {
	Count       int     `json:"contagem"`
	AvgDuration float64 `json:"duracaoMedia"`
	Quality     string  `json:"qualidade"`
	Analysis    string  `json:"analise"`
}

// Structure scores the speech's narrative arc.
type Structure struct {
	Opening     Section `json:"abertura"`
	Development Section `json:"desenvolvimento"`
	Conclusion  Section `json:"conclusao"`
	Comment     string  `json:"comentario"`
}

// Section is one scored part of the structure analysis.
type Section struct {
	Score    float64 `json:"nota"`
	Analysis string  `json:"analise"`
}

// Vocabulary analyses word choice and register.
type Vocabulary struct {
	ToneAnalysis  string       `json:"analiseTom"`
	RepeatedWords []FillerWord `json:"palavrasRepetidas"`
	Crutches      []string     `json:"muletas"`
}

// Tone reports overall vocal tone and energy.
type Tone struct {
	Overall  string  `json:"tomGeral"`
	Energy   float64 `json:"energia"`
	Analysis string  `json:"analise"`
}

// Evolution compares this recording against the speaker's history.
type Evolution struct {
	Trend      string `json:"tendencia"`
	Comparison string `json:"comparativo"`
}

// Benchmark compares the speech against a reference style.
type Benchmark struct {
	Reference  string `json:"referencia"`
	Comparison string `json:"comparacao"`
}

// Decode parses an oracle reply into a Report with strict validation.
// Unknown fields, type mismatches, out-of-range scores, and entirely empty
// reports all yield [ErrMalformedResponse].
func Decode(data []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var r Report
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &r, nil
}

// validate applies range checks to whichever sub-reports are present.
func (r *Report) validate() error {
	if r.Clarity == nil && r.FillerWords == nil && r.Pace == nil &&
		r.Intonation == nil && r.Pauses == nil && r.Structure == nil &&
		r.Vocabulary == nil && r.Tone == nil && r.Optimized == "" {
		return errors.New("no analysis content")
	}
	var errs []error
	if r.Clarity != nil && (r.Clarity.Score < 0 || r.Clarity.Score > 10) {
		errs = append(errs, fmt.Errorf("clareza.nota %.2f out of range [0, 10]", r.Clarity.Score))
	}
	for i, fw := range r.FillerWords {
		if fw.Count < 0 {
			errs = append(errs, fmt.Errorf("palavrasPreenchimento[%d].contagem is negative", i))
		}
		if fw.Word == "" {
			errs = append(errs, fmt.Errorf("palavrasPreenchimento[%d].palavra is empty", i))
		}
	}
	if r.Pace != nil && r.Pace.Value < 0 {
		errs = append(errs, errors.New("wpm.valor is negative"))
	}
	if r.Intonation != nil && r.Intonation.Variance < 0 {
		errs = append(errs, errors.New("entonação.variacao is negative"))
	}
	if r.Pauses != nil && r.Pauses.Count < 0 {
		errs = append(errs, errors.New("pausas.contagem is negative"))
	}
	return errors.Join(errs...)
}

// Metric identifies a measurable dimension of a report used by milestone
// targets.
type Metric int

const (
	// MetricClarity is the clarity score (clareza.nota).
	MetricClarity Metric = iota

	// MetricFillerWords is the total filler-word occurrence count.
	MetricFillerWords

	// MetricWPM is the speaking pace (wpm.valor).
	MetricWPM

	// MetricIntonation is the pitch variance (entonação.variacao).
	MetricIntonation
)

// String returns the metric's canonical name.
func (m Metric) String() string {
	switch m {
	case MetricClarity:
		return "clarity"
	case MetricFillerWords:
		return "filler_words"
	case MetricWPM:
		return "wpm"
	case MetricIntonation:
		return "intonation"
	default:
		return "unknown"
	}
}

// MetricValue extracts the value of metric m. ok is false when the report
// carries no data for it.
//
// MetricFillerWords sums the occurrence counts and is defined even for a
// missing list: no listed filler words means a count of zero, matching how
// the analysis prompt treats a clean recording.
func (r *Report) MetricValue(m Metric) (value float64, ok bool) {
	switch m {
	case MetricClarity:
		if r.Clarity == nil {
			return 0, false
		}
		return r.Clarity.Score, true
	case MetricFillerWords:
		total := 0
		for _, fw := range r.FillerWords {
			total += fw.Count
		}
		return float64(total), true
	case MetricWPM:
		if r.Pace == nil {
			return 0, false
		}
		return r.Pace.Value, true
	case MetricIntonation:
		if r.Intonation == nil {
			return 0, false
		}
		return r.Intonation.Variance, true
	default:
		return 0, false
	}
}
