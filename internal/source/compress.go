package source

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Decompress inflates data according to the compression suffix of name
// (.gz, .zst, .lz4) and returns name without that suffix. Data with any
// other suffix is returned unchanged.
func Decompress(name string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))

	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, name, errors.Wrap(err, "gzip")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		return out, base, errors.Wrap(err, "gzip")
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, name, errors.Wrap(err, "zstd")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		return out, base, errors.Wrap(err, "zstd")
	case ".lz4":
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		return out, base, errors.Wrap(err, "lz4")
	default:
		return data, name, nil
	}
}
