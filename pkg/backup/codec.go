package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec turns documents into bytes of one file format and back.
type Codec interface {
	Marshal(doc Document) ([]byte, error)
	Unmarshal(data []byte) (Document, error)

	// SupportsFileExtension reports whether files with ext use this format.
	// The leading dot is optional.
	SupportsFileExtension(ext string) bool
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)

// CodecFor picks a codec from the file extension of path, falling back to JSON.
func CodecFor(path string) Codec {
	ext := filepath.Ext(path)
	for _, c := range []Codec{JSONCodec{}, YAMLCodec{}} {
		if c.SupportsFileExtension(ext) {
			return c
		}
	}
	return JSONCodec{}
}

// JSONCodec reads and writes indented JSON. The ".2fa" extension of the
// previous desktop app is JSON too.
type JSONCodec struct{}

func (JSONCodec) Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONCodec) Unmarshal(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, errors.Join(ErrInvalidFormat, errors.New("empty input"))
	}
	return decode(data, json.Unmarshal)
}

func (JSONCodec) SupportsFileExtension(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	return strings.EqualFold(ext, "json") || strings.EqualFold(ext, "2fa")
}

// YAMLCodec reads and writes YAML with two space indentation.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Unmarshal(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, errors.Join(ErrInvalidFormat, errors.New("empty input"))
	}
	return decode(data, yaml.Unmarshal)
}

func (YAMLCodec) SupportsFileExtension(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	return strings.EqualFold(ext, "yaml") || strings.EqualFold(ext, "yml")
}
