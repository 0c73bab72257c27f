// Package product encodes scenes and classification results. MessagePack is
// the default wire format; JSON is available for inspection and for clients
// without a MessagePack library.
package product

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/pipeline"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is a product encoding.
type Format string

const (
	MsgPack Format = "msgpack"
	JSON    Format = "json"
)

// ParseFormat accepts "msgpack" or "json". The empty string means MsgPack.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", MsgPack:
		return MsgPack, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown product format %q", s)
}

// FormatForPath picks JSON for .json files and MsgPack otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return MsgPack
}

// FormatForContentType maps an HTTP content type to a format.
func FormatForContentType(ct string) Format {
	if strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return JSON
	}
	return MsgPack
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	if f == JSON {
		return "application/json"
	}
	return "application/x-msgpack"
}

// Encode writes v to w.
func Encode(w io.Writer, f Format, v any) error {
	if f == JSON {
		return json.NewEncoder(w).Encode(v)
	}
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json") // Use json tags for MessagePack
	return enc.Encode(v)
}

// Decode reads one value from r into v.
func Decode(r io.Reader, f Format, v any) error {
	if f == JSON {
		return json.NewDecoder(r).Decode(v)
	}
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// ReadScene loads a scene bundle, choosing the format from the extension.
func ReadScene(path string) (pipeline.Scene, error) {
	var sc pipeline.Scene
	err := readFile(path, &sc)
	return sc, err
}

// WriteResult stores a classification product.
func WriteResult(path string, res *pipeline.Result) error {
	return writeFile(path, res)
}

// ReadResult loads a classification product.
func ReadResult(path string) (*pipeline.Result, error) {
	var res pipeline.Result
	if err := readFile(path, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// WriteScene stores a scene bundle.
func WriteScene(path string, sc pipeline.Scene) error {
	return writeFile(path, sc)
}

// ReadField loads a single raster, such as a reference label grid produced
// by another classifier.
func ReadField(path string) (grid.Field, error) {
	var f grid.Field
	if err := readFile(path, &f); err != nil {
		return grid.Field{}, err
	}
	return f, f.Check()
}

func readFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Decode(f, FormatForPath(path), v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, FormatForPath(path), v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
