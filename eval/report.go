package eval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

// Report is the outcome of one evaluation run
type Report struct {
	RunID    string
	Captions int
	Images   int
	Ks       []int
	Scores   rank.Scores
	Elapsed  time.Duration
}

func (r *Report) ks() []int {
	ks := append([]int(nil), r.Ks...)
	if len(ks) == 0 {
		for k := range r.Scores.CaptionToImage {
			ks = append(ks, k)
		}
	}
	sort.Ints(ks)
	return ks
}

// Line renders the one-line summary, e.g.
// s2i[R@5=12.30, R@10=20.00, R@20=31.50], i2s[R@5=..., ...]
func (r *Report) Line() string {
	return fmt.Sprintf("s2i[%s], i2s[%s]",
		recallList(r.Scores.CaptionToImage, r.ks()),
		recallList(r.Scores.ImageToCaption, r.ks()))
}

func recallList(m rank.Metrics, ks []int) string {
	parts := make([]string, len(ks))
	for i, k := range ks {
		parts[i] = fmt.Sprintf("R@%d=%.02f", k, m[k])
	}
	return strings.Join(parts, ", ")
}

// Markdown renders the report as a markdown document with a recall table
func (r *Report) Markdown() string {
	ks := r.ks()
	var sb strings.Builder

	sb.WriteString("# Retrieval evaluation\n\n")
	sb.WriteString(fmt.Sprintf("- run: `%s`\n", r.RunID))
	sb.WriteString(fmt.Sprintf("- captions: %d\n", r.Captions))
	sb.WriteString(fmt.Sprintf("- images: %d\n", r.Images))
	if r.Elapsed > 0 {
		sb.WriteString(fmt.Sprintf("- elapsed: %s\n", r.Elapsed.Round(time.Millisecond)))
	}
	sb.WriteString("\n| direction |")
	for _, k := range ks {
		sb.WriteString(fmt.Sprintf(" R@%d |", k))
	}
	sb.WriteString("\n|---|")
	for range ks {
		sb.WriteString("---:|")
	}
	sb.WriteString("\n")
	writeRow(&sb, "caption to image (s2i)", r.Scores.CaptionToImage, ks)
	writeRow(&sb, "image to caption (i2s)", r.Scores.ImageToCaption, ks)
	return sb.String()
}

func writeRow(sb *strings.Builder, label string, m rank.Metrics, ks []int) {
	sb.WriteString("| " + label + " |")
	for _, k := range ks {
		sb.WriteString(fmt.Sprintf(" %.02f |", m[k]))
	}
	sb.WriteString("\n")
}
