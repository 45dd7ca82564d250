package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// object is a JSON object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) get(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// decodeOrdered reads one JSON value keeping object key order. Numbers stay
// json.Number so int64 values never round-trip through float64.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := readValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after manifest object")
	}
	return v, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{vals: make(map[string]any)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not a string", kt)
				}
				v, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.vals[key]; dup {
					return nil, fmt.Errorf("duplicate key %q", key)
				}
				obj.keys = append(obj.keys, key)
				obj.vals[key] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				v, err := readValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		// string, json.Number, bool or nil
		return tok, nil
	}
}

// orderedWriter emits a JSON object with keys in insertion order.
type orderedWriter struct {
	buf   *bytes.Buffer
	first bool
	err   error
}

func newOrderedWriter(buf *bytes.Buffer) *orderedWriter {
	buf.WriteByte('{')
	return &orderedWriter{buf: buf, first: true}
}

func (w *orderedWriter) field(key string, v any) {
	if w.err != nil {
		return
	}
	if !w.first {
		w.buf.WriteByte(',')
	}
	w.first = false

	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')

	data, err := json.Marshal(v)
	if err != nil {
		w.err = err
		return
	}
	w.buf.Write(data)
}

func (w *orderedWriter) close() error {
	w.buf.WriteByte('}')
	return w.err
}
