package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/TIRP-Group3/design1/internal/dataset"
)

// ErrUnseenCategory is returned when a value has no code and the
// encoder was built without the "unknown" sentinel. Encoders fitted by
// this package always include the sentinel, so this only fires for
// artifacts that predate that guarantee.
var ErrUnseenCategory = errors.New("ml: category not seen during fit and no unknown sentinel")

// CategoricalEncoder is a fixed bijection between observed string
// categories and dense integer codes for one column. Immutable after
// fit.
type CategoricalEncoder struct {
	Classes []string `json:"classes"`

	codes map[string]int
}

// FitCategorical builds an encoder over the distinct values in
// first-seen order, appending the missing-value sentinel if absent.
func FitCategorical(values []string) *CategoricalEncoder {
	enc := &CategoricalEncoder{codes: make(map[string]int)}
	for _, v := range values {
		if _, ok := enc.codes[v]; !ok {
			enc.codes[v] = len(enc.Classes)
			enc.Classes = append(enc.Classes, v)
		}
	}
	if _, ok := enc.codes[dataset.MissingSentinel]; !ok {
		enc.codes[dataset.MissingSentinel] = len(enc.Classes)
		enc.Classes = append(enc.Classes, dataset.MissingSentinel)
	}
	return enc
}

// FitTarget builds a label encoder over the observed labels only; no
// sentinel is appended since predictions can only name known classes.
func FitTarget(values []string) *CategoricalEncoder {
	enc := &CategoricalEncoder{codes: make(map[string]int)}
	for _, v := range values {
		if _, ok := enc.codes[v]; !ok {
			enc.codes[v] = len(enc.Classes)
			enc.Classes = append(enc.Classes, v)
		}
	}
	return enc
}

// Encode maps a value to its code. Values not seen during fit map to
// the sentinel's code.
func (e *CategoricalEncoder) Encode(value string) (int, error) {
	e.ensureCodes()
	if code, ok := e.codes[value]; ok {
		return code, nil
	}
	if code, ok := e.codes[dataset.MissingSentinel]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnseenCategory, value)
}

// Decode maps a code back to its category string.
func (e *CategoricalEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("ml: code %d out of range [0,%d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// Len returns the number of known categories.
func (e *CategoricalEncoder) Len() int {
	return len(e.Classes)
}

func (e *CategoricalEncoder) ensureCodes() {
	if e.codes != nil {
		return
	}
	e.codes = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.codes[c] = i
	}
}

// EncoderSet holds the per-column feature encoders and the
// distinguished target encoder fitted by one training run.
type EncoderSet struct {
	// Order fixes the feature column layout of encoded vectors.
	Order []string `json:"order"`
	// Features maps column name to encoder; numeric columns have no
	// entry and pass through as parsed floats.
	Features map[string]*CategoricalEncoder `json:"features"`
	Target   *CategoricalEncoder            `json:"target"`
}

// FitEncoders fits a CategoricalEncoder over every non-numeric feature
// column of ds and a target encoder over the label column.
func FitEncoders(ds *dataset.Dataset, labelColumn string) (*EncoderSet, error) {
	labels, err := ds.Column(labelColumn)
	if err != nil {
		return nil, err
	}

	set := &EncoderSet{
		Features: make(map[string]*CategoricalEncoder),
		Target:   FitTarget(labels),
	}
	for _, col := range ds.Columns() {
		if col == labelColumn {
			continue
		}
		values, err := ds.Column(col)
		if err != nil {
			return nil, err
		}
		set.Order = append(set.Order, col)
		if !allNumeric(values) {
			set.Features[col] = FitCategorical(values)
		}
	}
	return set, nil
}

// TransformRow encodes one row (column name -> raw value) into a
// feature vector laid out per Order. Cells absent from the row are
// treated as the missing sentinel.
func (s *EncoderSet) TransformRow(row map[string]string) ([]float64, error) {
	vec := make([]float64, len(s.Order))
	for i, col := range s.Order {
		value, ok := row[col]
		if !ok || value == "" {
			value = dataset.MissingSentinel
		}
		if enc, found := s.Features[col]; found {
			code, err := enc.Encode(value)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			vec[i] = float64(code)
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: non-numeric value %q", col, value)
		}
		vec[i] = f
	}
	return vec, nil
}

// Transform encodes every row of ds into a feature matrix. The input
// dataset is not modified.
func (s *EncoderSet) Transform(ds *dataset.Dataset) ([][]float64, error) {
	matrix := make([][]float64, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		vec, err := s.TransformRow(ds.Row(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		matrix[i] = vec
	}
	return matrix, nil
}

// EncodeLabels encodes the label column values into class indices.
func (s *EncoderSet) EncodeLabels(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, err := s.Target.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// NumClasses returns the number of target classes seen during fit.
func (s *EncoderSet) NumClasses() int {
	return s.Target.Len()
}

// Marshal serializes the encoder set to JSON.
func (s *EncoderSet) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalEncoderSet restores an encoder set serialized by Marshal.
func UnmarshalEncoderSet(data []byte) (*EncoderSet, error) {
	set := &EncoderSet{}
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("ml: decode encoder set: %w", err)
	}
	if set.Target == nil {
		return nil, errors.New("ml: encoder set has no target encoder")
	}
	return set, nil
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if v == dataset.MissingSentinel {
			return false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return len(values) > 0
}
