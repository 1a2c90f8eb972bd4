package phraseql

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// CompressionType represents the compression applied to an uploaded file.
type CompressionType int

const (
	// CompressionNone means the file is not compressed.
	CompressionNone CompressionType = iota
	// CompressionGZ is gzip compression.
	CompressionGZ
	// CompressionBZ2 is bzip2 compression.
	CompressionBZ2
	// CompressionXZ is xz compression.
	CompressionXZ
	// CompressionZSTD is zstandard compression.
	CompressionZSTD
)

// Compression extensions
const (
	extGZ   = ".gz"
	extBZ2  = ".bz2"
	extXZ   = ".xz"
	extZSTD = ".zst"
)

// Extension returns the file extension for the compression type.
func (ct CompressionType) Extension() string {
	switch ct {
	case CompressionGZ:
		return extGZ
	case CompressionBZ2:
		return extBZ2
	case CompressionXZ:
		return extXZ
	case CompressionZSTD:
		return extZSTD
	default:
		return ""
	}
}

// detectCompression inspects the file name's trailing extension and returns
// the compression type plus the name with the compression extension removed.
func detectCompression(fileName string) (CompressionType, string) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, extGZ):
		return CompressionGZ, fileName[:len(fileName)-len(extGZ)]
	case strings.HasSuffix(lower, extBZ2):
		return CompressionBZ2, fileName[:len(fileName)-len(extBZ2)]
	case strings.HasSuffix(lower, extXZ):
		return CompressionXZ, fileName[:len(fileName)-len(extXZ)]
	case strings.HasSuffix(lower, extZSTD):
		return CompressionZSTD, fileName[:len(fileName)-len(extZSTD)]
	default:
		return CompressionNone, fileName
	}
}

// newDecompressionReader wraps reader with the decompressor for the given
// compression type. The returned close function releases decoder resources
// and must be called after reading.
func newDecompressionReader(reader io.Reader, compression CompressionType) (io.Reader, func() error, error) {
	switch compression {
	case CompressionNone:
		return reader, func() error { return nil }, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		// bzip2.NewReader doesn't need closing
		return bzip2.NewReader(reader), func() error { return nil }, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		// xz.Reader doesn't have a Close method
		return xzReader, func() error { return nil }, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression type: %v", compression)
	}
}
