package vec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestParseFloats(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "Empty array", input: "[]"},
		{name: "Single integer", input: "[42]"},
		{name: "Single float", input: "[3.14159]"},
		{name: "Mixed values", input: "[1, 2.5, -3.7, 4, 5.0]"},
		{name: "Scientific notation", input: "[1.2e3, 4.5e-2, 6.7E+1]"},
		{name: "Various spacing", input: "[  1.2 ,\n  3.4\t,   5.6   ]"},
		{name: "No brackets", input: "1, 2, 3", wantErr: true},
		{name: "Non-numeric value", input: "[1, \"hello\", 3]", wantErr: true},
		{name: "Malformed number", input: "[1, 2..5, 3]", wantErr: true},
		{name: "Blank", input: "   ", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFloats(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseFloats(%q) should have failed", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFloats(%q) error = %v", tc.input, err)
			}

			var want []float64
			if err := json.Unmarshal([]byte(tc.input), &want); err != nil {
				t.Fatalf("json.Unmarshal(%q) error = %v", tc.input, err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ParseFloats(%q) = %v, want %v", tc.input, got, want)
			}
		})
	}
}

func FuzzParseFloats(f *testing.F) {
	for _, seed := range []string{"[]", "[0]", "[-2.718]", "[1, 2, 3]", "[1e2, 3.4e-5, 6.7e+8]"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		if len(input) > 10000 {
			return
		}
		got, err := ParseFloats(input)

		var want []float64
		if json.Unmarshal([]byte(input), &want) != nil || want == nil {
			return
		}
		if err != nil {
			t.Fatalf("valid JSON array %q rejected: %v", input, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseFloats(%q) = %v, want %v", input, got, want)
		}
	})
}

func TestDecodeFloat64s(t *testing.T) {
	got, err := DecodeFloat64s([]byte{})
	if err != nil || !reflect.DeepEqual(got, []float64{}) {
		t.Errorf("DecodeFloat64s(empty) = %v, %v", got, err)
	}

	_, err = DecodeFloat64s([]byte{1, 2, 3})
	if err == nil || err.Error() != "invalid data length: 3 is not divisible by 8" {
		t.Errorf("expected length error, got %v", err)
	}
}

func TestEncodeFloat64s_RoundTrip(t *testing.T) {
	inputs := [][]float64{
		{},
		{42.0},
		{1.23, 4.56, 7.89, -123.456},
		{0.0, math.Inf(1), math.Inf(-1), math.NaN()},
		{math.MaxFloat64, math.SmallestNonzeroFloat64},
	}

	for _, in := range inputs {
		encoded := EncodeFloat64s(in)
		if len(encoded) != len(in)*8 {
			t.Fatalf("expected %d bytes, got %d", len(in)*8, len(encoded))
		}

		var std bytes.Buffer
		if err := binary.Write(&std, binary.LittleEndian, in); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(encoded, std.Bytes()) {
			t.Errorf("encoding of %v differs from binary.Write", in)
		}

		decoded, err := DecodeFloat64s(encoded)
		if err != nil {
			t.Fatal(err)
		}
		for i := range in {
			if math.IsNaN(in[i]) {
				if !math.IsNaN(decoded[i]) {
					t.Errorf("index %d: expected NaN, got %v", i, decoded[i])
				}
			} else if in[i] != decoded[i] {
				t.Errorf("index %d: expected %v, got %v", i, in[i], decoded[i])
			}
		}
	}
}

func TestDistance(t *testing.T) {
	d, err := Distance([]float64{1, 0}, []float64{1, 0})
	if err != nil || d != -1 {
		t.Errorf("identical vectors: got %v, %v", d, err)
	}

	d, err = Distance([]float64{1, 0}, []float64{0, 1})
	if err != nil || d != 0 {
		t.Errorf("orthogonal vectors: got %v, %v", d, err)
	}

	d, err = Distance([]float64{0, 0}, []float64{1, 1})
	if err != nil || d != 0 {
		t.Errorf("zero vector: got %v, %v", d, err)
	}

	if _, err := Distance([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}
