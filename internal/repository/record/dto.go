package record

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	domcol "github.com/kailas-cloud/vecmatch/internal/domain/collection"
	"github.com/kailas-cloud/vecmatch/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecmatch/internal/domain/record"
)

// Hash layout. Indexed schema fields are stored flat next to these.
const (
	fieldContent    = "__content"
	fieldKind       = "__kind"
	fieldAttributes = "__attrs"
	fieldPartition  = domcol.PartitionField
	fieldVector     = "vector"
	tagSeparator    = ","
)

// buildHashFields flattens a record into HSET fields: payload, the full attribute
// map as JSON, and one indexable field per schema attribute present on the record.
func buildHashFields(col domcol.Collection, rec *domrec.Record) (map[string]string, error) {
	attrs, err := json.Marshal(rec.Attributes())
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}

	m := make(map[string]string, 5+len(col.Fields()))
	m[fieldContent] = rec.Content()
	m[fieldKind] = string(rec.Kind())
	m[fieldPartition] = rec.Partition()
	m[fieldAttributes] = string(attrs)
	m[fieldVector] = vectorToBytes(rec.Vector())

	for _, f := range col.Fields() {
		v, ok := rec.Attributes()[f.Name()]
		if !ok || v == nil {
			continue
		}
		switch f.FieldType() {
		case field.Numeric:
			n, ok := toFloat(v)
			if !ok {
				return nil, domain.Validationf("attribute %q must be numeric", f.Name())
			}
			m[f.Name()] = strconv.FormatFloat(n, 'f', -1, 64)
		case field.Tag:
			m[f.Name()] = strings.Join(tagValues(v), tagSeparator)
		}
	}
	return m, nil
}

// parseHashFields rebuilds a record from HGETALL output.
func parseHashFields(id string, m map[string]string) (domrec.Record, error) {
	attrs, err := decodeAttributes(m[fieldAttributes])
	if err != nil {
		return domrec.Record{}, err
	}
	kind := domain.InputKind(m[fieldKind])
	if kind == "" {
		kind = domain.InputText
	}
	return domrec.Reconstruct(
		id, m[fieldPartition], kind, m[fieldContent], attrs, bytesToVector(m[fieldVector]),
	), nil
}

func decodeAttributes(s string) (map[string]any, error) {
	if s == "" || s == "null" {
		return map[string]any{}, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

func tagValues(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	default:
		return []string{fmt.Sprint(v)}
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
