package vec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// EncodeFloat64s packs floats as consecutive little-endian IEEE 754 values,
// which is how embedding vectors are stored in the passages table.
func EncodeFloat64s(floats []float64) []byte {
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func DecodeFloat64s(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid data length: %d is not divisible by 8", len(data))
	}
	result := make([]float64, len(data)/8)
	for i := range result {
		result[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return result, nil
}

var ErrNotArray = errors.New("input is not a JSON array")
var ErrInvalidChar = errors.New("invalid character in JSON array")

// ParseFloats reads a JSON array of numbers, e.g. "[0.1, -2e3]", without
// going through reflection.
func ParseFloats(s string) ([]float64, error) {
	lo, hi := 0, len(s)-1
	for lo < len(s) && isWhitespace(s[lo]) {
		lo++
	}
	for hi > lo && isWhitespace(s[hi]) {
		hi--
	}
	if lo >= hi || s[lo] != '[' || s[hi] != ']' {
		return nil, ErrNotArray
	}
	lo++
	hi--

	commas := 0
	for i := lo; i <= hi; i++ {
		if s[i] == ',' {
			commas++
		}
	}
	result := make([]float64, 0, commas+1)

	numStart := -1
	flush := func(end int) error {
		if numStart < 0 {
			return nil
		}
		num, err := strconv.ParseFloat(s[numStart:end], 64)
		if err != nil {
			return err
		}
		result = append(result, num)
		numStart = -1
		return nil
	}

	for i := lo; i <= hi; i++ {
		c := s[i]
		switch {
		case isNumeric(c):
			if numStart < 0 {
				numStart = i
			}
		case isWhitespace(c) || c == ',':
			if err := flush(i); err != nil {
				return nil, err
			}
		default:
			return nil, ErrInvalidChar
		}
	}
	if err := flush(hi + 1); err != nil {
		return nil, err
	}
	return result, nil
}

func isNumeric(c byte) bool {
	return c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E'
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
