package normalize

import (
	"fmt"

	"github.com/cuemby/imgbackfill/pkg/types"
)

// Normalize converts a raw record into its canonical manifest.
//
// The input is never modified. Fields absent from r stay absent; fields
// present with a null value are copied as null. Unknown fields are
// copied unchanged.
func Normalize(r types.Record) (types.Manifest, error) {
	uuid := r.UUID()
	m := make(types.Manifest, len(r))
	for k, v := range r {
		m[k] = v
	}

	for _, field := range types.BoolFields {
		if v, ok := r[field]; ok {
			m[field] = boolFromString(v)
		}
	}

	if v, ok := r[types.FieldImageSize]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return nil, types.NormalizationErrorf(uuid, types.FieldImageSize, "%v", err)
		}
		m[types.FieldImageSize] = n
	}

	if v, ok := r[types.FieldTags]; ok && v != nil {
		tags, err := tagsToMap(v)
		if err != nil {
			return nil, types.NormalizationErrorf(uuid, types.FieldTags, "%v", err)
		}
		m[types.FieldTags] = tags
	}

	if v, ok := r[types.FieldFiles]; ok && v != nil {
		files, err := reduceFiles(v)
		if err != nil {
			return nil, types.NormalizationErrorf(uuid, types.FieldFiles, "%v", err)
		}
		m[types.FieldFiles] = files
	}

	return m, nil
}

// reduceFiles keeps only sha1, size, compression and dataset_guid on each
// file descriptor.
func reduceFiles(v interface{}) ([]interface{}, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array of file descriptors, got %T", v)
	}

	out := make([]interface{}, 0, len(list))
	for i, item := range list {
		f, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d: expected file descriptor object, got %T", i, item)
		}
		reduced := make(map[string]interface{}, len(types.FileFields))
		for _, key := range types.FileFields {
			val, present := f[key]
			if !present {
				continue
			}
			if key == types.FileSize && val != nil {
				n, err := toInt(val)
				if err != nil {
					return nil, fmt.Errorf("element %d: size: %v", i, err)
				}
				val = n
			}
			reduced[key] = val
		}
		out = append(out, reduced)
	}
	return out, nil
}
