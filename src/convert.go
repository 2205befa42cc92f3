package pawrun

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ToGo converts a value into plain Go data: nil, bool, int64, float64,
// string, []any and map[string]any. Closures become their text form and
// errors become a record of their fields.
func ToGo(v Value) any {
	switch v.Kind {
	case KindNothing:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = ToGo(item)
		}
		return out
	case KindRecord:
		out := make(map[string]any, v.Record.Len())
		v.Record.Each(func(col string, val Value) {
			out[col] = ToGo(val)
		})
		return out
	case KindError:
		return ToGo(errorRecord(v.Err))
	}
	return v.String()
}

// FromGo converts decoded Go data into a value. Map keys are sorted since
// Go maps carry no order.
func FromGo(x any, span Span) Value {
	return fromGoOrdered(x, span, nil, nil)
}

// keyOrder returns the document order of the keys under path, if known
type keyOrder func(path []string) []string

func fromGoOrdered(x any, span Span, path []string, order keyOrder) Value {
	switch t := x.(type) {
	case nil:
		return NothingValue(span)
	case bool:
		return BoolValue(t, span)
	case int:
		return IntValue(int64(t), span)
	case int8:
		return IntValue(int64(t), span)
	case int16:
		return IntValue(int64(t), span)
	case int32:
		return IntValue(int64(t), span)
	case int64:
		return IntValue(t, span)
	case uint8:
		return IntValue(int64(t), span)
	case uint16:
		return IntValue(int64(t), span)
	case uint32:
		return IntValue(int64(t), span)
	case uint64:
		if t > math.MaxInt64 {
			return FloatValue(float64(t), span)
		}
		return IntValue(int64(t), span)
	case uint:
		return fromGoOrdered(uint64(t), span, path, order)
	case float32:
		return FloatValue(float64(t), span)
	case float64:
		return FloatValue(t, span)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i, span)
		}
		f, _ := t.Float64()
		return FloatValue(f, span)
	case string:
		return StringValue(t, span)
	case []byte:
		return StringValue(string(t), span)
	case time.Time:
		return StringValue(t.Format(time.RFC3339), span)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromGoOrdered(item, span, path, order)
		}
		return ListValue(items, span)
	case []map[string]any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromGoOrdered(item, span, path, order)
		}
		return ListValue(items, span)
	case map[string]any:
		rec := NewRecord()
		for _, k := range orderedKeys(t, path, order) {
			rec.Set(k, fromGoOrdered(t[k], span, append(path[:len(path):len(path)], k), order))
		}
		return RecordValue(rec, span)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = val
		}
		return fromGoOrdered(m, span, path, order)
	}
	return StringValue(fmt.Sprint(x), span)
}

func orderedKeys(m map[string]any, path []string, order keyOrder) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	if order != nil {
		for _, k := range order(path) {
			if _, ok := m[k]; ok && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// encodeJSON writes v as JSON keeping record column order. An empty indent
// produces compact output.
func encodeJSON(w *bytes.Buffer, v Value, indent string, depth int) error {
	newline := func(d int) {
		if indent == "" {
			return
		}
		w.WriteByte('\n')
		w.WriteString(strings.Repeat(indent, d))
	}
	switch v.Kind {
	case KindNothing:
		w.WriteString("null")
	case KindBool:
		w.WriteString(strconv.FormatBool(v.Bool))
	case KindInt:
		w.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			return newEvalError(v.Span, "Cannot represent %s in JSON", formatFloat(v.Float, -1))
		}
		s := strconv.FormatFloat(v.Float, 'f', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		w.WriteString(s)
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		w.Write(b)
	case KindList:
		if len(v.List) == 0 {
			w.WriteString("[]")
			return nil
		}
		w.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				w.WriteByte(',')
			}
			newline(depth + 1)
			if err := encodeJSON(w, item, indent, depth+1); err != nil {
				return err
			}
		}
		newline(depth)
		w.WriteByte(']')
	case KindRecord:
		if v.Record.Len() == 0 {
			w.WriteString("{}")
			return nil
		}
		w.WriteByte('{')
		var err error
		i := 0
		v.Record.Each(func(col string, val Value) {
			if err != nil {
				return
			}
			if i > 0 {
				w.WriteByte(',')
			}
			i++
			newline(depth + 1)
			key, _ := json.Marshal(col)
			w.Write(key)
			w.WriteByte(':')
			if indent != "" {
				w.WriteByte(' ')
			}
			err = encodeJSON(w, val, indent, depth+1)
		})
		if err != nil {
			return err
		}
		newline(depth)
		w.WriteByte('}')
	case KindError:
		return encodeJSON(w, errorRecord(v.Err), indent, depth)
	default:
		return newEvalError(v.Span, "Cannot convert %s to JSON", v.TypeName())
	}
	return nil
}

// decodeJSON parses one JSON document keeping object key order
func decodeJSON(data string, span Span) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec, span)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected data after the JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder, span Span) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeJSONValue(dec, span)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ListValue(items, span), nil
		case '{':
			rec := NewRecord()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				val, err := decodeJSONValue(dec, span)
				if err != nil {
					return Value{}, err
				}
				rec.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return RecordValue(rec, span), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return FromGo(t, span), nil
	}
}

// toYAMLNode builds a yaml node tree keeping record column order
func toYAMLNode(v Value) (*yaml.Node, error) {
	switch v.Kind {
	case KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.List {
			child, err := toYAMLNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case KindRecord:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		v.Record.Each(func(col string, val Value) {
			if err != nil {
				return
			}
			var child *yaml.Node
			child, err = toYAMLNode(val)
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col}, child)
		})
		return n, err
	case KindError:
		return toYAMLNode(errorRecord(v.Err))
	case KindClosure:
		return nil, newEvalError(v.Span, "Cannot convert closure to YAML")
	}
	n := &yaml.Node{}
	if err := n.Encode(ToGo(v)); err != nil {
		return nil, err
	}
	return n, nil
}

// fromYAMLNode converts a decoded yaml node keeping mapping order
func fromYAMLNode(n *yaml.Node, span Span) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NothingValue(span), nil
		}
		return fromYAMLNode(n.Content[0], span)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := fromYAMLNode(c, span)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ListValue(items, span), nil
	case yaml.MappingNode:
		rec := NewRecord()
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := fromYAMLNode(n.Content[i+1], span)
			if err != nil {
				return Value{}, err
			}
			rec.Set(n.Content[i].Value, val)
		}
		return RecordValue(rec, span), nil
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, span)
	}
	var x any
	if err := n.Decode(&x); err != nil {
		return Value{}, err
	}
	return FromGo(x, span), nil
}

// encodeTOML requires a record at the top level
func encodeTOML(v Value) (string, error) {
	if v.Kind != KindRecord {
		return "", typeMismatch(v.Span, "record", v)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(ToGo(v)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// decodeTOML parses a TOML document; keys keep document order
func decodeTOML(data string, span Span) (Value, error) {
	var m map[string]any
	md, err := toml.Decode(data, &m)
	if err != nil {
		return Value{}, err
	}
	children := make(map[string][]string)
	for _, key := range md.Keys() {
		if len(key) == 0 {
			continue
		}
		parent := strings.Join(key[:len(key)-1], "\x00")
		children[parent] = append(children[parent], key[len(key)-1])
	}
	order := func(path []string) []string {
		return children[strings.Join(path, "\x00")]
	}
	return fromGoOrdered(m, span, nil, order), nil
}
