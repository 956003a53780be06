package pipeline

import (
	"fmt"

	"aird/internal/logging"
	"aird/internal/types"
)

// Default policy thresholds.
const (
	DefaultMinTrustScore       = 50.0
	DefaultMinSecure           = 90.0
	DefaultMinMetadataPresence = 80.0
	DefaultMinKBReady          = 50.0
)

// criticalTags are the violations that fail a run outright; the rest
// downgrade it to warnings.
var criticalTags = map[string]bool{
	"low_trust":         true,
	"security_not_full": true,
}

// EvaluatePolicy checks a fingerprint against thresholds. An empty
// fingerprint fails with no_fingerprint.
func EvaluatePolicy(fp types.Fingerprint, th types.PolicyThresholds) types.PolicyResult {
	if th.MinTrustScore <= 0 {
		th.MinTrustScore = DefaultMinTrustScore
	}
	if th.MinSecure <= 0 {
		th.MinSecure = DefaultMinSecure
	}
	if th.MinMetadataPresence <= 0 {
		th.MinMetadataPresence = DefaultMinMetadataPresence
	}
	if th.MinKBReady <= 0 {
		th.MinKBReady = DefaultMinKBReady
	}

	res := types.PolicyResult{Thresholds: th}

	if fp.IsZero() {
		res.Status = types.PolicyFailed
		res.Violations = []string{"no_fingerprint"}
		return res
	}

	check := func(value, min float64, tag string) {
		if value < min {
			res.Violations = append(res.Violations, fmt.Sprintf("%s(<%g)", tag, min))
		}
	}
	check(fp.AITrustScore, th.MinTrustScore, "low_trust")
	check(fp.Secure, th.MinSecure, "security_not_full")
	check(fp.MetadataPresence, th.MinMetadataPresence, "weak_metadata")
	check(fp.KBReady, th.MinKBReady, "kb_not_ready")

	critical := false
	for _, v := range res.Violations {
		if criticalTags[tagOf(v)] {
			critical = true
		} else {
			res.Warnings = append(res.Warnings, v)
		}
	}

	switch {
	case len(res.Violations) == 0:
		res.Status = types.PolicyPassed
		res.PolicyPassed = true
	case critical:
		res.Status = types.PolicyFailed
	default:
		res.Status = types.PolicyWarnings
	}
	return res
}

// tagOf strips the threshold suffix from a violation string.
func tagOf(violation string) string {
	for i := 0; i < len(violation); i++ {
		if violation[i] == '(' {
			return violation[:i]
		}
	}
	return violation
}

// PolicyStage evaluates the product fingerprint against the configured
// thresholds and records the outcome on the product row. The stage
// itself succeeds even when the policy fails; the runner derives the run
// status from the recorded outcome.
type PolicyStage struct{}

func (*PolicyStage) Name() string { return StagePolicy }

func (*PolicyStage) Execute(sc *StageContext) types.StageResult {
	res := begin(StagePolicy, sc)

	prod, err := sc.Runtime.Catalog.GetProduct(sc.Product.ID)
	if err != nil {
		return fail(res, err)
	}

	var fp types.Fingerprint
	if prod.Fingerprint != nil {
		fp = *prod.Fingerprint
	}

	pcfg := sc.Runtime.Config.Pipeline
	outcome := EvaluatePolicy(fp, types.PolicyThresholds{
		MinTrustScore:       pcfg.MinTrustScore,
		MinSecure:           pcfg.MinSecure,
		MinMetadataPresence: pcfg.MinMetadataPresence,
		MinKBReady:          pcfg.MinKBReady,
	})

	if err := sc.Runtime.Catalog.SetPolicyOutcome(sc.Product.ID, outcome); err != nil {
		return fail(res, err)
	}

	res.Metrics["policy_status"] = string(outcome.Status)
	res.Metrics["policy_passed"] = outcome.PolicyPassed
	res.Metrics["violations"] = outcome.Violations
	res.Metrics["warnings"] = outcome.Warnings

	logging.L(logging.CategoryPolicy).Infow("policy evaluated",
		"status", outcome.Status, "violations", outcome.Violations)
	return succeed(res)
}
