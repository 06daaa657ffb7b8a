package archive

import (
	"bytes"
	"encoding/json"

	"github.com/cuemby/imgbackfill/pkg/types"
)

// Encode serializes a manifest as the archive entry text: 2-space
// indented JSON with keys in sorted order, HTML characters left
// unescaped and no trailing newline.
func Encode(m types.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
