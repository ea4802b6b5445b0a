package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
)

// Vector is an embedding column type stored as a JSON array of floats.
// It is portable across PostgreSQL, MySQL, and SQLite; similarity ranking
// happens in-process rather than in vector-extension SQL.
type Vector []float64

// Scan implements the sql.Scanner interface for reading from the database.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return errors.New("Vector: unsupported scan type")
	}
}

// Value implements the driver.Valuer interface for writing to the database.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (Vector) GormDataType() string {
	return "text"
}

// Cosine returns the cosine similarity between two vectors.
// Mismatched dimensions or zero-magnitude vectors yield 0.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
