package searchindex

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// DefaultKey is the repeating XOR mask shared with the client-side decoder.
const DefaultKey = "ReviewCatalog-v1"

// Codec is the reversible pipeline applied to every search payload:
// compact JSON, gzip, XOR against a repeating key, then standard base64.
//
// The key ships to the browser alongside the decoder, so the encoding gives
// no confidentiality. It only stops payloads from being read as plain JSON
// by naive scrapers.
type Codec struct {
	key []byte
}

// NewCodec returns a Codec masking with key. An empty key means DefaultKey.
func NewCodec(key string) *Codec {
	if key == "" {
		key = DefaultKey
	}
	return &Codec{key: []byte(key)}
}

// Encode serializes v and runs it through the pipeline.
func (c *Codec) Encode(v any) (string, error) {
	var raw bytes.Buffer
	enc := json.NewEncoder(&raw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder appends a newline; the payload is compact JSON.
	body := bytes.TrimSuffix(raw.Bytes(), []byte("\n"))

	var gz bytes.Buffer
	zw, err := gzip.NewWriterLevel(&gz, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(body); err != nil {
		return "", fmt.Errorf("gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(c.Mask(gz.Bytes())), nil
}

// Decode reverses Encode into v.
func (c *Codec) Decode(s string, v any) error {
	masked, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("base64 payload: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(c.Mask(masked)))
	if err != nil {
		return fmt.Errorf("gunzip payload: %w", err)
	}
	defer func() { _ = zr.Close() }()
	body, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("gunzip payload: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// Mask XORs data against the repeating key and returns a new slice. Applying
// Mask twice restores the input.
func (c *Codec) Mask(data []byte) []byte {
	out := make([]byte, len(data))
	if len(c.key) == 0 {
		copy(out, data)
		return out
	}
	for i, b := range data {
		out[i] = b ^ c.key[i%len(c.key)]
	}
	return out
}
