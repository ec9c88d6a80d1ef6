package cachedb

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Compressor frames a payload for storage. The cache itself never
// interprets the uncompressed bytes it's handed.
type Compressor interface {
	Compress(data []byte) []byte
	Decompress(data []byte) ([]byte, error)
}

// IdentityCompressor stores payloads unmodified.
type IdentityCompressor struct{}

func (IdentityCompressor) Compress(data []byte) []byte { return append([]byte(nil), data...) }

func (IdentityCompressor) Decompress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// LZ4Compressor compresses payloads with LZ4, prefixing the compressed
// block with the uncompressed size so Decompress can size its buffer.
type LZ4Compressor struct{}

// Layout: [marker byte][uvarint uncompressed size][payload]. marker is
// 1 when payload is an LZ4 block, 0 when payload is stored raw (used
// for empty or incompressible input, where LZ4 framing overhead isn't
// worth paying).
func (LZ4Compressor) Compress(data []byte) []byte {
	szBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(szBuf, uint64(len(data)))

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	written, err := c.CompressBlock(data, dst)
	if err != nil || written == 0 {
		out := make([]byte, 1+n+len(data))
		out[0] = 0
		copy(out[1:], szBuf[:n])
		copy(out[1+n:], data)
		return out
	}

	out := make([]byte, 1+n+written)
	out[0] = 1
	copy(out[1:], szBuf[:n])
	copy(out[1+n:], dst[:written])
	return out
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	marker := data[0]
	rest := data[1:]
	size, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, fmt.Errorf("cachedb: malformed lz4 size prefix")
	}
	payload := rest[n:]
	if marker == 0 {
		return append([]byte(nil), payload...), nil
	}
	out := make([]byte, size)
	written, err := lz4.UncompressBlock(payload, out)
	if err != nil {
		return nil, fmt.Errorf("cachedb: lz4 decompress: %w", err)
	}
	return out[:written], nil
}
