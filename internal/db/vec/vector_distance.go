package vec

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"modernc.org/sqlite"
)

var distTotal = atomic.Int64{}
var distDecode = atomic.Int64{}
var distCount = atomic.Int64{}

// Statistics logs how much time vec_dist has spent since the process started.
func Statistics() {
	n := distCount.Load()
	if n == 0 {
		return
	}
	slog.Default().Debug("vec_dist stats",
		"count", n,
		"total", time.Duration(distTotal.Load()),
		"decoding", time.Duration(distDecode.Load()),
		"avg", time.Duration(distTotal.Load()/n),
	)
}

// Distance returns the negated cosine similarity of a and b, so that
// ORDER BY ascending puts the closest vectors first. Zero vectors have distance 0.
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("expected equal length arrays, got %d and %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return -(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// toVector accepts a BLOB from EncodeFloat64s or a JSON array as TEXT.
func toVector(v driver.Value) ([]float64, error) {
	switch t := v.(type) {
	case []byte:
		return DecodeFloat64s(t)
	case string:
		return ParseFloats(t)
	default:
		return nil, fmt.Errorf("expected blob or text, got %T", v)
	}
}

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("vec_dist", 2, func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		start := time.Now()
		defer func() {
			distTotal.Add(int64(time.Since(start)))
			distCount.Add(1)
		}()

		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}

		left, err := toVector(args[0])
		if err != nil {
			return nil, err
		}
		right, err := toVector(args[1])
		if err != nil {
			return nil, err
		}
		distDecode.Add(int64(time.Since(start)))

		return Distance(left, right)
	})
}
