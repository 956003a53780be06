package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aird/internal/playbook"
	"aird/internal/types"
)

func healthyFingerprint() types.Fingerprint {
	return types.Fingerprint{
		AITrustScore:     82,
		Completeness:     90,
		Quality:          88,
		Secure:           100,
		MetadataPresence: 85,
		KBReady:          70,
	}
}

func TestEvaluatePolicyPasses(t *testing.T) {
	res := EvaluatePolicy(healthyFingerprint(), types.PolicyThresholds{})
	require.Equal(t, types.PolicyPassed, res.Status)
	require.True(t, res.PolicyPassed)
	require.Empty(t, res.Violations)
	// Zero thresholds backfill to the defaults.
	require.Equal(t, DefaultMinSecure, res.Thresholds.MinSecure)
}

func TestEvaluatePolicyEmptyFingerprint(t *testing.T) {
	res := EvaluatePolicy(types.Fingerprint{}, types.PolicyThresholds{})
	require.Equal(t, types.PolicyFailed, res.Status)
	require.Equal(t, []string{"no_fingerprint"}, res.Violations)
}

func TestEvaluatePolicyCriticalViolationFails(t *testing.T) {
	fp := healthyFingerprint()
	fp.Secure = 40
	res := EvaluatePolicy(fp, types.PolicyThresholds{})
	require.Equal(t, types.PolicyFailed, res.Status)
	require.Contains(t, res.Violations, "security_not_full(<90)")
	require.NotContains(t, res.Warnings, "security_not_full(<90)")
}

func TestEvaluatePolicyNonCriticalDowngradesToWarnings(t *testing.T) {
	fp := healthyFingerprint()
	fp.MetadataPresence = 40
	fp.KBReady = 20
	res := EvaluatePolicy(fp, types.PolicyThresholds{})
	require.Equal(t, types.PolicyWarnings, res.Status)
	require.Len(t, res.Violations, 2)
	require.Equal(t, res.Violations, res.Warnings)
}

func TestOptimizeSecurityViolation(t *testing.T) {
	fp := healthyFingerprint()
	fp.Secure = 30
	outcome := EvaluatePolicy(fp, types.PolicyThresholds{})

	s := Optimize(fp, outcome, playbook.IDTech)
	require.Equal(t, true, s.ConfigTweaks["redaction_strict"])
	require.Equal(t, playbook.IDTech, s.NextPlaybook)
}

func TestOptimizeBoundaryQualityRecommendsPlaybook(t *testing.T) {
	fp := healthyFingerprint()
	fp.KBReady = 20
	fp.ChunkBoundaryQuality = 40
	outcome := EvaluatePolicy(fp, types.PolicyThresholds{})

	s := Optimize(fp, outcome, playbook.IDTech)
	require.Equal(t, true, s.ConfigTweaks["increase_chunk_overlap"])
	require.Contains(t, s.PlaybookRecommendations, playbook.IDRegulatory)
	require.Equal(t, playbook.IDRegulatory, s.NextPlaybook)
}

func TestOptimizeNoFindings(t *testing.T) {
	fp := healthyFingerprint()
	outcome := EvaluatePolicy(fp, types.PolicyThresholds{})
	s := Optimize(fp, outcome, playbook.IDTech)
	require.Empty(t, s.ConfigTweaks)
	require.Equal(t, []string{"no changes recommended; current configuration meets policy"}, s.Suggestions)
}
