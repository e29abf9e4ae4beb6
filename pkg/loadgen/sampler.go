// Package loadgen generates synthetic ingestion records to drive the
// ingestion pipeline's back-pressure and ordering paths under load,
// without a real telemetry feed behind it.
package loadgen

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jihwankim/resilience-core/pkg/ingestion"
)

// Sampler holds a seeded RNG and produces synthetic ingestion.Records for
// a fixed set of source node IDs.
type Sampler struct {
	rng     *rand.Rand
	sources []string
}

// NewSampler creates a Sampler seeded with seed, generating records for
// the given source node IDs.
func NewSampler(seed int64, sources []string) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed)), sources: sources} //nolint:gosec
}

// triangular samples from a triangular distribution on [lo, hi] with the
// given mode.
func (s *Sampler) triangular(lo, hi, mode float64) float64 {
	u := s.rng.Float64()
	fc := (mode - lo) / (hi - lo)
	if u < fc {
		return lo + math.Sqrt(u*(hi-lo)*(mode-lo))
	}
	return hi - math.Sqrt((1-u)*(hi-lo)*(hi-mode))
}

// QualityProfile biases sampled QualityScore toward good, near-threshold
// or bad records.
type QualityProfile int

const (
	// QualityMostlyGood samples scores triangular-biased toward 0.95.
	QualityMostlyGood QualityProfile = iota
	// QualityNearThreshold samples scores triangular-biased toward 0.5,
	// exercising the accept/reject boundary around a typical threshold.
	QualityNearThreshold
	// QualityMostlyBad samples scores triangular-biased toward 0.1.
	QualityMostlyBad
)

func (s *Sampler) sampleQuality(profile QualityProfile) float64 {
	switch profile {
	case QualityNearThreshold:
		return s.triangular(0.3, 0.7, 0.5)
	case QualityMostlyBad:
		return s.triangular(0, 0.4, 0.1)
	default:
		return s.triangular(0.7, 1.0, 0.95)
	}
}

// RecordSpec parameterizes synthetic record generation.
type RecordSpec struct {
	Quality        QualityProfile
	LoadLo, LoadHi float64 // sampled load payload range
	// OutOfOrderFraction is the probability [0,1] a generated record's
	// timestamp is deliberately jittered backward to exercise the
	// pipeline's per-source staleness rejection.
	OutOfOrderFraction float64
}

// DefaultRecordSpec samples good-quality, monotonically-ordered load
// records in [0,100].
func DefaultRecordSpec() RecordSpec {
	return RecordSpec{Quality: QualityMostlyGood, LoadLo: 0, LoadHi: 100}
}

// Next generates one synthetic sensor.load record timestamped at base,
// rotating across the sampler's source IDs.
func (s *Sampler) Next(spec RecordSpec, index int, base time.Time) ingestion.Record {
	source := s.sources[index%len(s.sources)]
	ts := base
	if s.rng.Float64() < spec.OutOfOrderFraction {
		ts = ts.Add(-time.Duration(s.rng.Intn(5)+1) * time.Second)
	}

	load := spec.LoadLo + s.rng.Float64()*(spec.LoadHi-spec.LoadLo)
	return ingestion.Record{
		SourceID:     source,
		Timestamp:    ts,
		DataType:     ingestion.DataSensorLoad,
		Payload:      map[string]interface{}{"load": load},
		QualityScore: s.sampleQuality(spec.Quality),
	}
}

// Batch generates n synthetic records spaced one per call of Next, with
// strictly increasing base timestamps so only OutOfOrderFraction
// introduces staleness.
func (s *Sampler) Batch(spec RecordSpec, n int, start time.Time, step time.Duration) []ingestion.Record {
	out := make([]ingestion.Record, n)
	for i := 0; i < n; i++ {
		out[i] = s.Next(spec, i, start.Add(time.Duration(i)*step))
	}
	return out
}

// Describe returns a short human-readable label for spec, for CLI output.
func (spec RecordSpec) Describe() string {
	name := "good"
	switch spec.Quality {
	case QualityNearThreshold:
		name = "near-threshold"
	case QualityMostlyBad:
		name = "bad"
	}
	return fmt.Sprintf("%s quality, load in [%.0f,%.0f], %.0f%% out-of-order", name, spec.LoadLo, spec.LoadHi, spec.OutOfOrderFraction*100)
}
