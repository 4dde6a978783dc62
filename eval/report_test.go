package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

func sampleReport() *Report {
	return &Report{
		RunID:    "run-42",
		Captions: 5000,
		Images:   1000,
		Ks:       []int{5, 10, 20},
		Scores: rank.Scores{
			CaptionToImage: rank.Metrics{5: 12.3, 10: 20, 20: 31.456},
			ImageToCaption: rank.Metrics{5: 1, 10: 2, 20: 3},
		},
		Elapsed: 1500 * time.Millisecond,
	}
}

func TestReportLine(t *testing.T) {
	assert.Equal(t,
		"s2i[R@5=12.30, R@10=20.00, R@20=31.46], i2s[R@5=1.00, R@10=2.00, R@20=3.00]",
		sampleReport().Line())
}

func TestReportLineSortsKs(t *testing.T) {
	r := sampleReport()
	r.Ks = nil
	assert.Equal(t,
		"s2i[R@5=12.30, R@10=20.00, R@20=31.46], i2s[R@5=1.00, R@10=2.00, R@20=3.00]",
		r.Line())
}

func TestReportMarkdown(t *testing.T) {
	md := sampleReport().Markdown()
	assert.Contains(t, md, "- run: `run-42`")
	assert.Contains(t, md, "- captions: 5000")
	assert.Contains(t, md, "- elapsed: 1.5s")
	assert.Contains(t, md, "| direction | R@5 | R@10 | R@20 |")
	assert.Contains(t, md, "| caption to image (s2i) | 12.30 | 20.00 | 31.46 |")
	assert.Contains(t, md, "| image to caption (i2s) | 1.00 | 2.00 | 3.00 |")
}
