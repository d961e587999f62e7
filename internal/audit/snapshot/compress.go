package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/sitepulse/engine/internal/common/configtypes"
)

// Payloads below this size are stored uncompressed.
const compressionMinSize = 1024

const (
	extSnappy = ".snappy"
	extLZ4    = ".lz4"
)

// compress encodes content with the configured algorithm. Returns the
// stored bytes and the file extension marking the codec; small payloads
// and algorithm "none" pass through with an empty extension.
func compress(content []byte, algorithm string) ([]byte, string, error) {
	if len(content) < compressionMinSize {
		return content, "", nil
	}

	switch algorithm {
	case configtypes.CompressionSnappy:
		return snappy.Encode(nil, content), extSnappy, nil

	case configtypes.CompressionLZ4:
		// LZ4 stream format embeds size information.
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			w.Close()
			return nil, "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), extLZ4, nil

	default:
		return content, "", nil
	}
}

// decompress decodes content based on the file extension. Unrecognized
// extensions pass through unchanged.
func decompress(content []byte, filePath string) ([]byte, error) {
	switch {
	case strings.HasSuffix(filePath, extSnappy):
		decompressed, err := snappy.Decode(nil, content)
		if err != nil {
			return nil, fmt.Errorf("snappy decompression failed: %w", err)
		}
		return decompressed, nil

	case strings.HasSuffix(filePath, extLZ4):
		r := lz4.NewReader(bytes.NewReader(content))
		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		return decompressed, nil

	default:
		return content, nil
	}
}
