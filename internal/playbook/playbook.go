// Package playbook loads domain presets from YAML and routes sample text
// to one of the built-in playbooks. A playbook bundles chunking defaults,
// noise patterns, sectioning cues, and retrieval evaluation settings for a
// content domain.
package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"aird/internal/logging"
	"aird/internal/types"
)

// Built-in playbook ids.
const (
	IDTech       = "TECH"
	IDScanned    = "SCANNED"
	IDRegulatory = "REGULATORY"
	IDFinance    = "finance_banking"
	IDLegal      = "legal"
)

// Playbook is one domain preset.
type Playbook struct {
	ID       string `yaml:"id"`
	Chunking struct {
		MaxTokens int    `yaml:"max_tokens"`
		Overlap   int    `yaml:"overlap"`
		Strategy  string `yaml:"strategy"`
	} `yaml:"chunking"`
	NoisePatterns []string `yaml:"noise_patterns"`
	Sectioning    struct {
		HeadingPatterns []string `yaml:"heading_patterns"`
	} `yaml:"sectioning"`
	Coherence struct {
		MinSentenceTokens int     `yaml:"min_sentence_tokens"`
		TargetTolerance   float64 `yaml:"target_tolerance"` // fraction around max_tokens considered in-range
	} `yaml:"coherence"`
	RAGEvaluation struct {
		RetrievalSettings struct {
			TopK       int `yaml:"top_k"`
			MaxQueries int `yaml:"max_queries"`
		} `yaml:"retrieval_settings"`
	} `yaml:"rag_evaluation"`
}

// applyDefaults fills conservative values for missing keys.
func (p *Playbook) applyDefaults() {
	if p.Chunking.MaxTokens <= 0 {
		p.Chunking.MaxTokens = 900
	}
	if p.Chunking.Overlap < 0 {
		p.Chunking.Overlap = 0
	}
	if p.Chunking.Overlap == 0 {
		p.Chunking.Overlap = p.Chunking.MaxTokens / 5
	}
	if p.Chunking.Strategy == "" {
		p.Chunking.Strategy = "fixed_size"
	}
	if p.Coherence.TargetTolerance <= 0 {
		p.Coherence.TargetTolerance = 0.5
	}
	if p.RAGEvaluation.RetrievalSettings.TopK <= 0 {
		p.RAGEvaluation.RetrievalSettings.TopK = 5
	}
	if p.RAGEvaluation.RetrievalSettings.MaxQueries <= 0 {
		p.RAGEvaluation.RetrievalSettings.MaxQueries = 20
	}
}

// ChunkSettings converts the playbook chunking section into resolved
// chunk settings.
func (p *Playbook) ChunkSettings() types.ChunkSettings {
	return types.ChunkSettings{
		ChunkSize: p.Chunking.MaxTokens,
		Overlap:   p.Chunking.Overlap,
		MinSize:   p.Chunking.MaxTokens / 8,
		MaxSize:   p.Chunking.MaxTokens * 2,
		Strategy:  p.Chunking.Strategy,
	}
}

// Loader resolves playbooks from a directory of YAML files.
type Loader struct {
	dir string
}

// NewLoader returns a Loader rooted at dir.
func NewLoader(dir string) *Loader { return &Loader{dir: dir} }

// ResolveFile locates the YAML file for a playbook id. The id is matched
// case-sensitively first, then lowercased.
func (l *Loader) ResolveFile(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty playbook id", types.ErrConfig)
	}
	for _, name := range []string{id + ".yaml", id + ".yml", strings.ToLower(id) + ".yaml"} {
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: unknown playbook id %q (dir %s)", types.ErrConfig, id, l.dir)
}

// Load reads and parses a playbook by id, applying defaults.
func (l *Loader) Load(id string) (*Playbook, error) {
	path, err := l.ResolveFile(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook %s: %w", path, err)
	}
	var p Playbook
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	p.applyDefaults()
	logging.L(logging.CategoryAnalyzer).Debugw("playbook loaded", "id", p.ID, "max_tokens", p.Chunking.MaxTokens)
	return &p, nil
}

var (
	scannedCue    = regexp.MustCompile(`(?m)=== PAGE \d+ ===|\f`)
	regulatoryCue = regexp.MustCompile(`(?im)(\b(regulation|compliance|pursuant to|shall not|directive)\b|§\s*\d+)`)
	techCue       = regexp.MustCompile(`(?im)\b(api|endpoint|function|install|config|server|deploy|json|yaml)\b`)
)

// Route chooses among the built-in TECH/SCANNED/REGULATORY playbooks from
// domain cues in a text sample. Used by the cost-estimate path and as the
// default for products without a playbook id.
func Route(sample, filename string) string {
	lowerName := strings.ToLower(filename)
	if strings.HasSuffix(lowerName, ".pdf") && scannedCue.MatchString(sample) {
		return IDScanned
	}
	if scannedCue.MatchString(sample) {
		return IDScanned
	}

	reg := len(regulatoryCue.FindAllString(sample, -1))
	tech := len(techCue.FindAllString(sample, -1))
	if reg > tech && reg > 0 {
		return IDRegulatory
	}
	return IDTech
}
