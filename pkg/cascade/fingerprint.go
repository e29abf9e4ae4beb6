package cascade

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint computes a deterministic digest of a graph snapshot version
// plus request parameters, used by the job coordinator to deduplicate
// concurrent identical submissions.
func Fingerprint(snapshotVersion uint64, req Request) string {
	initial := append([]string{}, req.Event.InitialFailures...)
	sort.Strings(initial)

	var b strings.Builder
	fmt.Fprintf(&b, "v=%d|", snapshotVersion)
	fmt.Fprintf(&b, "event=%s|severity=%f|initial=%s|", req.Event.Kind, req.Event.Severity, strings.Join(initial, ","))
	fmt.Fprintf(&b, "horizon=%f|step=%f|runs=%d|conf=%f|", req.HorizonMinutes, req.TimeStepMinutes, req.MonteCarloRuns, req.ConfidenceLevel)
	fmt.Fprintf(&b, "basep=%f|loadmult=%f|recov=%t|meanrecov=%f|alpha=%f|k=%f", req.BasePropagationProbability, req.LoadThresholdMultiplier, req.RecoveryEnabled, req.MeanRecoveryTimeMinutes, req.LoadRedistributionFraction, req.StressSensitivityK)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
