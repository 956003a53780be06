package analyzer

import (
	"strings"
	"testing"
)

const legalSample = `WHEREAS the parties hereto agree as follows, and whereas the
indemnification obligations shall survive termination, the party of the first part
warrants that notwithstanding any clause 4 herein, governing law is the law of Delaware.
The parties agree that liability is limited. Hereinafter the agreement.`

const codeSample = `package main

import "fmt"

// greet prints a greeting.
func greet(name string) string {
	return "hello " + name
}

func main() {
	fmt.Println(greet("world"))
	return
}
`

func TestAnalyzeDetectsLegal(t *testing.T) {
	r := Analyze(legalSample, "contract.txt", "")
	if r.ContentType != TypeLegal {
		t.Fatalf("ContentType = %q, want legal (scores %v)", r.ContentType, r.Evidence.AllScores)
	}
	if r.Settings.Strategy != "semantic" {
		t.Errorf("Strategy = %q, want semantic", r.Settings.Strategy)
	}
	if len(r.Evidence.MatchedPatterns) == 0 {
		t.Error("expected matched patterns in evidence")
	}
}

func TestAnalyzeDetectsCode(t *testing.T) {
	r := Analyze(codeSample, "main.go", "")
	if r.ContentType != TypeCode {
		t.Fatalf("ContentType = %q, want code (scores %v)", r.ContentType, r.Evidence.AllScores)
	}
	if r.Evidence.ExtensionBias != TypeCode {
		t.Errorf("ExtensionBias = %q, want code", r.Evidence.ExtensionBias)
	}
	if r.Settings.Strategy != "recursive" {
		t.Errorf("Strategy = %q, want recursive", r.Settings.Strategy)
	}
}

func TestAnalyzeGeneralFallback(t *testing.T) {
	r := Analyze("zxqv wlrm pttk", "blob.bin", "")
	if r.ContentType != TypeGeneral {
		t.Fatalf("ContentType = %q, want general", r.ContentType)
	}
	if r.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", r.Confidence)
	}
}

func TestAnalyzeHintOverridesWeakDetection(t *testing.T) {
	r := Analyze("zxqv wlrm pttk", "blob.bin", TypeFinance)
	if r.ContentType != TypeFinance {
		t.Fatalf("ContentType = %q, want finance_banking", r.ContentType)
	}
	if r.Confidence < 0.6 {
		t.Errorf("Confidence = %v, want >= 0.6", r.Confidence)
	}
	if !r.Evidence.HintUsed {
		t.Error("HintUsed = false, want true")
	}
}

func TestAnalyzeHintAgreementBoosts(t *testing.T) {
	base := Analyze(legalSample, "contract.txt", "")
	hinted := Analyze(legalSample, "contract.txt", TypeLegal)
	if hinted.ContentType != TypeLegal {
		t.Fatalf("ContentType = %q, want legal", hinted.ContentType)
	}
	if hinted.Confidence <= base.Confidence && hinted.Confidence != 1.0 {
		t.Errorf("hinted confidence %v not boosted over %v", hinted.Confidence, base.Confidence)
	}
	if !hinted.Evidence.HintAgreed {
		t.Error("HintAgreed = false, want true")
	}
}

func TestAnalyzeUnknownHintIgnored(t *testing.T) {
	r := Analyze("zxqv wlrm pttk", "blob.bin", "poetry")
	if r.ContentType != TypeGeneral {
		t.Fatalf("ContentType = %q, want general", r.ContentType)
	}
	if r.Evidence.HintUsed {
		t.Error("unknown hint should not be used")
	}
}

func TestAdjustSettingsShortDocumentClamps(t *testing.T) {
	short := "Tiny note. " + strings.Repeat("word ", 20)
	words := len(strings.Fields(short))
	r := Analyze(short, "note.txt", "")
	if r.Settings.ChunkSize > r.Settings.MaxSize {
		t.Errorf("ChunkSize %d exceeds MaxSize %d", r.Settings.ChunkSize, r.Settings.MaxSize)
	}
	// The word-count bound wins over the type minimum: a chunk wider
	// than the whole document is useless.
	if r.Settings.ChunkSize > words*4 {
		t.Errorf("ChunkSize %d exceeds word bound %d", r.Settings.ChunkSize, words*4)
	}
	if r.Settings.Overlap > r.Settings.ChunkSize/4 {
		t.Errorf("Overlap %d exceeds quarter of ChunkSize %d", r.Settings.Overlap, r.Settings.ChunkSize)
	}
	if r.Settings.Overlap >= r.Settings.ChunkSize {
		t.Errorf("Overlap %d >= ChunkSize %d", r.Settings.Overlap, r.Settings.ChunkSize)
	}
}

func TestPreviewChunking(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 400)
	p := PreviewChunking(text, 200, 40)
	if p.TotalChunks < 2 {
		t.Fatalf("TotalChunks = %d, want >= 2", p.TotalChunks)
	}
	if len(p.SampleChunks) > 5 {
		t.Errorf("SampleChunks = %d, want <= 5", len(p.SampleChunks))
	}
	if p.RetrievalQuality == "" {
		t.Error("RetrievalQuality not set")
	}
	if p.AvgTokens <= 0 || p.MaxTokens < p.MinTokens {
		t.Errorf("bad stats: avg=%d min=%d max=%d", p.AvgTokens, p.MinTokens, p.MaxTokens)
	}
}
