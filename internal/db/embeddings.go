package db

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// bytesToEmbedding converts a little-endian byte slice to []float32.
// Each 4 bytes = one LE float32. Short trailing chunk → 0.0.
func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	if len(data)%4 != 0 {
		n++ // include partial chunk as 0.0
	}
	result := make([]float32, n)
	for i := 0; i < len(data)/4; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		result[i] = math.Float32frombits(bits)
	}
	return result
}

// embeddingToBytes is the inverse of bytesToEmbedding
func embeddingToBytes(vec []float32) []byte {
	data := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

// GetEmbedding returns a cached embedding, or nil if none is stored
func (d *DB) GetEmbedding(textHash, model string) ([]float32, error) {
	var data []byte
	err := d.conn.QueryRow(
		"SELECT embedding FROM embeddings WHERE text_hash = ? AND model = ?",
		textHash, model,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bytesToEmbedding(data), nil
}

// PutEmbedding stores an embedding, replacing any previous one
func (d *DB) PutEmbedding(textHash, model string, vec []float32) error {
	_, err := d.conn.Exec(
		"INSERT OR REPLACE INTO embeddings (text_hash, model, embedding, created_at) VALUES (?, ?, ?, ?)",
		textHash, model, embeddingToBytes(vec), time.Now().UnixMilli(),
	)
	return err
}

// CountEmbeddings returns the number of cached embeddings for a model
func (d *DB) CountEmbeddings(model string) (int, error) {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM embeddings WHERE model = ?", model).Scan(&count)
	return count, err
}
