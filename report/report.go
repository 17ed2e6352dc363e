// Package report summarizes the results of a batch run. Numeric fields of
// the result values get descriptive statistics and string fields get
// occurrence counts; the summary can be written as JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/MasterOfBinary/malbatch/batch"
)

// ValueKey is the field name used for result values that are not JSON
// objects.
const ValueKey = "value"

// NumericStats describes the distribution of a numeric field.
type NumericStats struct {
	Count  int     `json:"count" yaml:"count"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
}

// Occurrence is the number of times Value was seen in a categorical field.
type Occurrence struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Report is the summary of a batch run, keyed by field name. Fields of
// nested objects are joined with a dot.
type Report struct {
	Samples     int                     `json:"samples" yaml:"samples"`
	Numeric     map[string]NumericStats `json:"numeric" yaml:"numeric"`
	Categorical map[string][]Occurrence `json:"categorical" yaml:"categorical"`
}

// Summarize builds a Report from results. Every value is converted to its
// JSON form first, so structs, maps and json.RawMessage values from a
// cache or worker process are treated alike.
//
// Numbers and arrays of numbers feed NumericStats. Strings, booleans and
// arrays of them are counted as occurrences, sorted by count descending
// and then by value. Nulls are ignored.
func Summarize(results []batch.Result) (*Report, error) {
	acc := &accumulator{
		numbers: make(map[string][]float64),
		counts:  make(map[string]map[string]int),
	}

	for _, r := range results {
		data, err := json.Marshal(r.Value)
		if err != nil {
			return nil, fmt.Errorf("report: encode result of %s: %w", r.Sample, err)
		}
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("report: decode result of %s: %w", r.Sample, err)
		}

		if obj, ok := v.(map[string]interface{}); ok {
			acc.object("", obj)
		} else {
			acc.add(ValueKey, v)
		}
	}

	rep := &Report{
		Samples:     len(results),
		Numeric:     make(map[string]NumericStats, len(acc.numbers)),
		Categorical: make(map[string][]Occurrence, len(acc.counts)),
	}
	for field, xs := range acc.numbers {
		rep.Numeric[field] = Describe(xs)
	}
	for field, counts := range acc.counts {
		rep.Categorical[field] = Occurrences(counts)
	}
	return rep, nil
}

type accumulator struct {
	numbers map[string][]float64
	counts  map[string]map[string]int
}

func (a *accumulator) object(prefix string, obj map[string]interface{}) {
	for k, v := range obj {
		if prefix != "" {
			k = prefix + "." + k
		}
		a.add(k, v)
	}
}

func (a *accumulator) add(field string, v interface{}) {
	switch v := v.(type) {
	case nil:
	case float64:
		a.numbers[field] = append(a.numbers[field], v)
	case string:
		a.count(field, v)
	case bool:
		a.count(field, strconv.FormatBool(v))
	case map[string]interface{}:
		a.object(field, v)
	case []interface{}:
		for _, e := range v {
			a.add(field, e)
		}
	}
}

func (a *accumulator) count(field, value string) {
	m, ok := a.counts[field]
	if !ok {
		m = make(map[string]int)
		a.counts[field] = m
	}
	m[value]++
}

// Describe computes the statistics of xs. The standard deviation is the
// population one. Describe(nil) is the zero NumericStats.
func Describe(xs []float64) NumericStats {
	if len(xs) == 0 {
		return NumericStats{}
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	var sum float64
	for _, x := range sorted {
		sum += x
	}
	n := float64(len(sorted))
	mean := sum / n

	var sq float64
	for _, x := range sorted {
		sq += (x - mean) * (x - mean)
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return NumericStats{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: median,
		Std:    math.Sqrt(sq / n),
	}
}

// Occurrences turns a count map into a list sorted by count descending,
// ties broken by value.
func Occurrences(counts map[string]int) []Occurrence {
	occ := make([]Occurrence, 0, len(counts))
	for v, c := range counts {
		occ = append(occ, Occurrence{Value: v, Count: c})
	}
	sort.Slice(occ, func(i, j int) bool {
		if occ[i].Count != occ[j].Count {
			return occ[i].Count > occ[j].Count
		}
		return occ[i].Value < occ[j].Value
	})
	return occ
}
