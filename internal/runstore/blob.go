package runstore

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/vismag/internal/grid"
)

// gridBlob is the gob payload stored in grid_blob.
type gridBlob struct {
	Rows, Cols int
	CellSize   float64
	Values     []float64
}

// encodeGrid gob encodes g and compresses the result with zstd.
func encodeGrid(g *grid.Grid) ([]byte, error) {
	var raw bytes.Buffer
	blob := gridBlob{Rows: g.Rows(), Cols: g.Cols(), CellSize: g.CellSize(), Values: g.Values()}
	if err := gob.NewEncoder(&raw).Encode(&blob); err != nil {
		return nil, fmt.Errorf("gob encode grid: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

// decodeGrid reverses encodeGrid.
func decodeGrid(data []byte) (*grid.Grid, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress grid: %w", err)
	}
	var blob gridBlob
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("gob decode grid: %w", err)
	}
	return grid.ImportElevation(blob.Rows, blob.Cols, blob.CellSize, blob.Values)
}
