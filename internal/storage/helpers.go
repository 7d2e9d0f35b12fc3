package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError is a no-op after a successful commit.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rErr := rb.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) && *err == nil {
		*err = rErr
	}
}

// encodeMatrix packs a rectangular matrix as two uint32 dimensions
// followed by row-major little-endian float64 cells.
func encodeMatrix(data [][]float64) []byte {
	rows := len(data)
	cols := 0
	if rows > 0 {
		cols = len(data[0])
	}

	buf := make([]byte, 8, 8+8*rows*cols)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))
	for _, row := range data {
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf
}

func decodeMatrix(buf []byte) ([][]float64, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("matrix blob too short: %d bytes", len(buf))
	}
	rows := int(binary.LittleEndian.Uint32(buf[0:4]))
	cols := int(binary.LittleEndian.Uint32(buf[4:8]))
	if want := 8 + 8*rows*cols; len(buf) != want {
		return nil, fmt.Errorf("matrix blob is %d bytes, want %d for %dx%d", len(buf), want, rows, cols)
	}

	data := make([][]float64, rows)
	off := 8
	for i := range data {
		data[i] = make([]float64, cols)
		for j := range data[i] {
			data[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
			off += 8
		}
	}
	return data, nil
}

// encodeProfile packs (key, power) pairs the same way as a 2-column matrix.
func encodeProfile(points []ProfilePoint) []byte {
	data := make([][]float64, len(points))
	for i, p := range points {
		data[i] = []float64{p.Key, p.Power}
	}
	return encodeMatrix(data)
}

func decodeProfile(buf []byte) ([]ProfilePoint, error) {
	data, err := decodeMatrix(buf)
	if err != nil {
		return nil, err
	}
	points := make([]ProfilePoint, len(data))
	for i, row := range data {
		if len(row) != 2 {
			return nil, fmt.Errorf("profile row has %d columns, want 2", len(row))
		}
		points[i] = ProfilePoint{Key: row[0], Power: row[1]}
	}
	return points, nil
}
