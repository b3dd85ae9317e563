// Package canon implements the vault's byte-deterministic JSON
// canonicalization (RFC 8785 in spirit): sorted object keys, compact
// separators, a minimal string escape set, and a numeric encoding that
// is stable across runs of this implementation. It is the foundation
// every hash and signature in the vault rides on.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// Marshal produces the canonical byte encoding of value. value is first
// passed through encoding/json so Go structs, maps, and slices all
// normalize to the same generic tree before canonicalization runs.
func Marshal(value interface{}) ([]byte, error) {
	generic, err := toGeneric(value)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toGeneric normalizes a typed value (struct, map, slice, primitive)
// into the interface{} tree encoding/json would produce, so structs
// and hand-built maps canonicalize identically.
func toGeneric(value interface{}) (interface{}, error) {
	if _, ok := value.(json.RawMessage); ok {
		value = []byte(value.(json.RawMessage))
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCanonicalization, "marshal", err)
	}
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, vaulterr.New(vaulterr.KindCanonicalization, "decode", err)
	}
	return generic, nil
}

func encodeValue(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, v)
	case string:
		encodeString(buf, v)
		return nil
	case []interface{}:
		return encodeArray(buf, v)
	case map[string]interface{}:
		return encodeObject(buf, v)
	default:
		return vaulterr.New(vaulterr.KindCanonicalization, "encode", fmt.Errorf("unsupported type %T", value))
	}
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()

	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}

	f, err := n.Float64()
	if err != nil {
		return vaulterr.New(vaulterr.KindCanonicalization, "encode_number", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return vaulterr.New(vaulterr.KindCanonicalization, "encode_number", fmt.Errorf("non-finite number: %s", s))
	}

	out := strconv.FormatFloat(f, 'g', -1, 64)
	// strconv may emit scientific notation (1e+20); JSON numbers allow
	// that, but keep it lowercase-e with an explicit sign to be
	// byte-stable across Go versions.
	buf.WriteString(out)
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteString(s[i : i+size])
			}
		}
		i += size
	}
	buf.WriteByte('"')
}

func encodeArray(buf *bytes.Buffer, arr []interface{}) error {
	buf.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encodeValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
