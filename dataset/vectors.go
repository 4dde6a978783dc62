package dataset

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/valyala/fastjson"
)

// ReadImageVectors parses a JSON object mapping image ids to vectors,
// e.g. {"139": [0.1, 0.2], "285": [0.3, 0.4]}. Ids come back ascending.
func ReadImageVectors(path string) ([]int64, [][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	ids, vectors, err := ParseImageVectors(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, vectors, nil
}

// ParseImageVectors is ReadImageVectors on an in-memory document
func ParseImageVectors(data []byte) ([]int64, [][]float32, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse image vectors: %w", err)
	}
	obj, err := root.Object()
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64][]float32, obj.Len())
	var visitErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		id, err := strconv.ParseInt(string(key), 10, 64)
		if err != nil {
			visitErr = fmt.Errorf("image id %q: %w", key, err)
			return
		}
		values, err := v.Array()
		if err != nil {
			visitErr = fmt.Errorf("image %d: %w", id, err)
			return
		}
		vec := make([]float32, len(values))
		for d, x := range values {
			f, err := x.Float64()
			if err != nil {
				visitErr = fmt.Errorf("image %d dimension %d: %w", id, d, err)
				return
			}
			vec[d] = float32(f)
		}
		byID[id] = vec
	})
	if visitErr != nil {
		return nil, nil, visitErr
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		vectors[i] = byID[id]
	}
	return ids, vectors, nil
}
