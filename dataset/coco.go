package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/valyala/fastjson"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/utils"
)

// DefaultBatchSize is the number of annotations per batch
const DefaultBatchSize = 128

// Annotation is one caption of a COCO captions file
type Annotation struct {
	ID      int64
	ImageID int64
	Caption string
}

// Tokenizer turns caption texts into padded token and position rows
type Tokenizer interface {
	EncodeBatch(texts []string) (tokens [][]int64, positions [][]int64, err error)
}

// VectorSource provides precomputed image vectors keyed by image id
type VectorSource interface {
	ImageVectors(ctx context.Context) (map[int64][]float32, error)
}

// COCO serves a captions split as evaluation batches. Annotations are
// yielded in file order, each paired with its image's vector.
type COCO struct {
	batches  [][]Annotation
	captions CaptionIndex
	vectors  map[int64][]float32
	tok      Tokenizer
	pos      int
}

// ParseAnnotations reads the "annotations" array of a COCO captions file
func ParseAnnotations(data []byte) ([]Annotation, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}

	list, err := field(root, "annotations")
	if err != nil {
		return nil, err
	}
	items, err := list.Array()
	if err != nil {
		return nil, fmt.Errorf("annotations: %w", err)
	}

	anns := make([]Annotation, 0, len(items))
	for i, item := range items {
		a, err := parseAnnotation(item)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		anns = append(anns, a)
	}
	return anns, nil
}

func parseAnnotation(item *fastjson.Value) (Annotation, error) {
	var a Annotation
	v, err := field(item, "id")
	if err != nil {
		return a, err
	}
	if a.ID, err = v.Int64(); err != nil {
		return a, fmt.Errorf("id: %w", err)
	}
	if v, err = field(item, "image_id"); err != nil {
		return a, err
	}
	if a.ImageID, err = v.Int64(); err != nil {
		return a, fmt.Errorf("image_id: %w", err)
	}
	if v, err = field(item, "caption"); err != nil {
		return a, err
	}
	caption, err := v.StringBytes()
	if err != nil {
		return a, fmt.Errorf("caption: %w", err)
	}
	a.Caption = strings.TrimSpace(string(caption))
	return a, nil
}

func field(v *fastjson.Value, key string) (*fastjson.Value, error) {
	f := v.Get(key)
	if f == nil {
		return nil, fmt.Errorf("missing %q", key)
	}
	return f, nil
}

// ReadAnnotations parses the COCO captions file at path
func ReadAnnotations(path string) ([]Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	anns, err := ParseAnnotations(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return anns, nil
}

// CaptionIndex maps annotation ids to caption texts
type CaptionIndex map[int64]string

// NewCaptionIndex indexes anns by id
func NewCaptionIndex(anns []Annotation) CaptionIndex {
	idx := make(CaptionIndex, len(anns))
	for _, a := range anns {
		idx[a.ID] = a.Caption
	}
	return idx
}

// Caption returns the text of a caption by annotation id
func (c CaptionIndex) Caption(id int64) (string, bool) {
	text, ok := c[id]
	return text, ok
}

// LoadCOCO reads the annotation file at path and the image vectors from
// vectors, and returns a source yielding batchSize annotations per batch.
func LoadCOCO(ctx context.Context, path string, vectors VectorSource, tok Tokenizer, batchSize int) (*COCO, error) {
	anns, err := ReadAnnotations(path)
	if err != nil {
		return nil, err
	}
	vecs, err := vectors.ImageVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load image vectors: %w", err)
	}
	return NewCOCO(anns, vecs, tok, batchSize)
}

// NewCOCO builds a source over already loaded annotations and vectors.
// Every annotation must reference an image that has a vector.
func NewCOCO(anns []Annotation, vectors map[int64][]float32, tok Tokenizer, batchSize int) (*COCO, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer is nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for _, a := range anns {
		if _, ok := vectors[a.ImageID]; !ok {
			return nil, fmt.Errorf("annotation %d: image %d: %w", a.ID, a.ImageID, crossmodal.ErrUnknownID)
		}
	}

	return &COCO{
		batches:  utils.Batchify(anns, batchSize),
		captions: NewCaptionIndex(anns),
		vectors:  vectors,
		tok:      tok,
	}, nil
}

// Next tokenizes and returns the next batch, or io.EOF
func (c *COCO) Next(ctx context.Context) (*crossmodal.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= len(c.batches) {
		return nil, io.EOF
	}
	anns := c.batches[c.pos]
	c.pos++

	texts := make([]string, len(anns))
	batch := &crossmodal.Batch{
		Images:     make([][]float32, len(anns)),
		ImageIDs:   make([]int64, len(anns)),
		CaptionIDs: make([]int64, len(anns)),
	}
	for i, a := range anns {
		texts[i] = a.Caption
		batch.Images[i] = c.vectors[a.ImageID]
		batch.ImageIDs[i] = a.ImageID
		batch.CaptionIDs[i] = a.ID
	}

	tokens, positions, err := c.tok.EncodeBatch(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize captions: %w", err)
	}
	batch.Tokens = tokens
	batch.Positions = positions
	return batch, nil
}

// NumBatches returns the total number of batches
func (c *COCO) NumBatches() int {
	return len(c.batches)
}

// Reset rewinds the source to its first batch
func (c *COCO) Reset() {
	c.pos = 0
}

// Caption returns the text of a caption by annotation id
func (c *COCO) Caption(id int64) (string, bool) {
	return c.captions.Caption(id)
}
