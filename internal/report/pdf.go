package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"aird/internal/types"
)

// TrustReport is the input to the PDF renderer.
type TrustReport struct {
	ProductName  string
	Version      int
	PlaybookID   string
	GeneratedAt  time.Time
	Fingerprint  types.Fingerprint
	PolicyStatus string
	Violations   []string
	Warnings     []string
	Distribution map[string]int // trust score bucket -> chunk count
	TotalChunks  int
	Collection   string
}

// fingerprintRows lists the fingerprint dimensions in display order.
// Vector dimensions render only when the indexing stage filled them.
func (r *TrustReport) fingerprintRows() [][2]string {
	fp := r.Fingerprint
	rows := [][2]string{
		{"AI Trust Score", fmtScore(fp.AITrustScore)},
		{"Completeness", fmtScore(fp.Completeness)},
		{"Quality", fmtScore(fp.Quality)},
		{"Secure", fmtScore(fp.Secure)},
		{"Metadata Presence", fmtScore(fp.MetadataPresence)},
		{"KnowledgeBase Ready", fmtScore(fp.KBReady)},
	}
	if fp.ChunkBoundaryQuality > 0 {
		rows = append(rows, [2]string{"Chunk Boundary Quality", fmtScore(fp.ChunkBoundaryQuality)})
	}
	if fp.SemanticSearchReadiness > 0 {
		rows = append(rows,
			[2]string{"Vector Quality Score", fmtScore(fp.VectorQualityScore)},
			[2]string{"Embedding Model Health", fmtScore(fp.EmbeddingModelHealth)},
			[2]string{"Semantic Search Readiness", fmtScore(fp.SemanticSearchReadiness)},
			[2]string{"Retrieval Recall @K", fmtScore(fp.RetrievalRecallAtK)},
			[2]string{"Average Precision @K", fmtScore(fp.AveragePrecisionAtK)},
		)
	}
	return rows
}

func fmtScore(v float64) string { return fmt.Sprintf("%.1f / 100", v) }

// RenderPDF produces the trust report document.
func RenderPDF(r *TrustReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Trust Report - %s v%d", r.ProductName, r.Version), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "AI-Ready Dataset Trust Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s, version %d", r.ProductName, r.Version), "", 1, "L", false, 0, "")
	meta := fmt.Sprintf("Playbook %s, generated %s", r.PlaybookID, r.GeneratedAt.UTC().Format(time.RFC3339))
	pdf.CellFormat(0, 6, meta, "", 1, "L", false, 0, "")
	if r.Collection != "" {
		pdf.CellFormat(0, 6, "Collection "+r.Collection, "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	sectionTitle(pdf, "Policy")
	pdf.SetFont("Helvetica", "B", 11)
	switch r.PolicyStatus {
	case "passed":
		pdf.SetTextColor(0, 128, 0)
	case "warnings":
		pdf.SetTextColor(190, 120, 0)
	default:
		pdf.SetTextColor(180, 0, 0)
	}
	pdf.CellFormat(0, 7, "Status: "+r.PolicyStatus, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, v := range r.Violations {
		pdf.CellFormat(0, 5, "violation: "+v, "", 1, "L", false, 0, "")
	}
	for _, w := range r.Warnings {
		pdf.CellFormat(0, 5, "warning: "+w, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	sectionTitle(pdf, "Fingerprint")
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range r.fingerprintRows() {
		pdf.CellFormat(80, 6, row[0], "B", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, row[1], "B", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if len(r.Distribution) > 0 {
		sectionTitle(pdf, fmt.Sprintf("Trust Score Distribution (%d chunks)", r.TotalChunks))
		pdf.SetFont("Helvetica", "", 10)
		buckets := make([]string, 0, len(r.Distribution))
		for b := range r.Distribution {
			buckets = append(buckets, b)
		}
		sort.Strings(buckets)
		for _, b := range buckets {
			count := r.Distribution[b]
			pdf.CellFormat(30, 6, b, "B", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", count), "B", 0, "R", false, 0, "")
			pdf.CellFormat(60, 6, bar(count, r.TotalChunks), "B", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render trust report: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

// bar draws a crude text histogram bar scaled to 40 cells.
func bar(count, total int) string {
	if total == 0 {
		return ""
	}
	n := count * 40 / total
	out := make([]byte, n)
	for i := range out {
		out[i] = '#'
	}
	return string(out)
}
