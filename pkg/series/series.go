// Package series defines the row model shared by both caches. A Row is an
// opaque upstream record identified by a date or date-time key; its value
// fields are carried through untouched and never compared.
package series

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/interval"
)

// DateField is the JSON field that carries a row's key.
const DateField = "date"

// Row is one upstream record.
type Row struct {
	// Time is the row key. Zero for rows that are not part of a time series
	// (list results, search hits).
	Time time.Time

	// Values holds every other field of the record.
	Values map[string]any
}

// Rows is an ordered sequence of rows.
type Rows []Row

// ErrUnkeyed is returned by Rows.Keyed for rows without a usable date key.
var ErrUnkeyed = errors.New("row has no date key")

// Clone returns a deep copy of r. Nested objects and arrays are copied too,
// so the result shares no mutable state with r.
func (r Row) Clone() Row {
	if r.Values == nil {
		return Row{Time: r.Time}
	}
	return Row{Time: r.Time, Values: cloneObject(r.Values)}
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		return cloneObject(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Clone returns a deep copy of rows. A nil input yields nil.
func (rs Rows) Clone() Rows {
	if rs == nil {
		return nil
	}
	out := make(Rows, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// Keyed reports an error wrapping ErrUnkeyed for the first row whose date
// key is missing or could not be parsed. Time series consumers require it;
// generic results do not.
func (rs Rows) Keyed() error {
	for i, r := range rs {
		if !r.Time.IsZero() {
			continue
		}
		if raw, ok := r.Values[DateField]; ok {
			return fmt.Errorf("%w: row %d has date %v", ErrUnkeyed, i, raw)
		}
		return fmt.Errorf("%w: row %d", ErrUnkeyed, i)
	}
	return nil
}

// SortByTime sorts rows ascending by key. The sort is stable.
func (rs Rows) SortByTime() {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Time.Before(rs[j].Time)
	})
}

// Window returns copies of the rows whose key lies in [from, to]. rs must be
// sorted.
func (rs Rows) Window(from, to time.Time) Rows {
	lo := sort.Search(len(rs), func(i int) bool { return !rs[i].Time.Before(from) })
	hi := sort.Search(len(rs), func(i int) bool { return rs[i].Time.After(to) })
	if lo >= hi {
		return Rows{}
	}
	return rs[lo:hi].Clone()
}

// MarshalJSON renders the row as a flat object with the key in "date".
func (r Row) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		obj[k] = v
	}
	if !r.Time.IsZero() {
		obj[DateField] = interval.Format(r.Time)
	}
	return json.Marshal(obj)
}

// UnmarshalJSON reads a flat object. A "date" field that parses becomes the
// row key; any other "date" value stays in Values and leaves Time zero.
// Numbers keep full precision as json.Number.
func (r *Row) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return err
	}

	r.Time = time.Time{}
	if raw, ok := obj[DateField]; ok {
		if t, err := parseKey(raw); err == nil && !t.IsZero() {
			r.Time = t
			delete(obj, DateField)
		}
	}
	r.Values = obj
	return nil
}

func parseKey(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case string:
		return interval.ParseTime(v)
	case json.Number:
		return interval.ParseTime(v.String())
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", raw)
	}
}
