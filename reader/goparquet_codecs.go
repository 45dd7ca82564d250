package reader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// fraugster/parquet-go only ships uncompressed, snappy and gzip. The page
// reader checks the decompressed length against the page header.
func init() {
	goparquet.RegisterBlockCompressor(parquet.CompressionCodec_ZSTD, zstdBlock{})
	goparquet.RegisterBlockCompressor(parquet.CompressionCodec_BROTLI, brotliBlock{})
	goparquet.RegisterBlockCompressor(parquet.CompressionCodec_LZ4_RAW, lz4RawBlock{})
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

type zstdBlock struct{}

func (zstdBlock) CompressBlock(block []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(block, nil), nil
}

func (zstdBlock) DecompressBlock(block []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(block, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

type brotliBlock struct{}

func (brotliBlock) CompressBlock(block []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(block); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliBlock) DecompressBlock(block []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(block)))
	if err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	return out, nil
}

type lz4RawBlock struct{}

func (lz4RawBlock) CompressBlock(block []byte) ([]byte, error) {
	var c lz4.Compressor
	out := make([]byte, lz4.CompressBlockBound(len(block)))
	n, err := c.CompressBlock(block, out)
	if err != nil {
		return nil, fmt.Errorf("lz4_raw: %w", err)
	}
	return out[:n], nil
}

// DecompressBlock grows the destination until the block fits; raw LZ4 does
// not record its decompressed size.
func (lz4RawBlock) DecompressBlock(block []byte) ([]byte, error) {
	if len(block) == 0 {
		return nil, nil
	}
	size := max(4*len(block), 64<<10)
	for {
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(block, out)
		if err == nil {
			return out[:n], nil
		}
		if size >= 1<<30 {
			return nil, fmt.Errorf("lz4_raw: %w", err)
		}
		size *= 2
	}
}
