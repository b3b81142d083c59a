package callback

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// Params is an ordered string-to-string mapping sent as a callback body.
// Keys are case-sensitive. Setting an existing key replaces its value in place.
// The zero value is ready to use.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams builds Params from alternating key/value pairs.
func NewParams(kvs ...string) *Params {
	p := &Params{}
	for i := 0; i+1 < len(kvs); i += 2 {
		p.Set(kvs[i], kvs[i+1])
	}
	return p
}

// Set stores value under key.
func (p *Params) Set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is set.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Len returns the number of keys.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Merge copies every key of other on top of p; other wins on collision.
func (p *Params) Merge(other *Params) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		p.Set(k, other.values[k])
	}
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	c := &Params{}
	c.Merge(p)
	return c
}

// Map returns the parameters as a plain map.
func (p *Params) Map() map[string]string {
	m := make(map[string]string, p.Len())
	if p == nil {
		return m
	}
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

// Encode returns the parameters in URL form encoding, preserving key order.
func (p *Params) Encode() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.values[k]))
	}
	return sb.String()
}

// MarshalJSON encodes the parameters as a JSON object in key order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if p != nil {
		for i, k := range p.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(p.values[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns the JSON form, used in log lines.
func (p *Params) String() string {
	b, _ := p.MarshalJSON()
	return string(b)
}
