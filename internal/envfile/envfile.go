// Package envfile reads and writes the window's KEY=VALUE config file.
//
// Each line holding an '=' is split at the first '='; key and value are
// trimmed. A value wrapped in double quotes is unquoted with Go string
// syntax, which is how Set writes values that trimming would change. Other
// lines (comments, blanks, junk) are kept verbatim so a rewrite does not
// lose them. Unrecognized keys are retained.
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultName is the file name the window reads from its working directory.
const DefaultName = ".env"

type line struct {
	raw   string
	key   string
	value string
	isKV  bool
}

// File is an ordered KEY=VALUE document.
type File struct {
	lines []line
	index map[string]int
}

// New returns an empty document.
func New() *File {
	return &File{index: make(map[string]int)}
}

// Parse reads a document. Later duplicates of a key win.
func Parse(r io.Reader) (*File, error) {
	f := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := strings.TrimRight(sc.Text(), "\r")
		k, v, ok := strings.Cut(raw, "=")
		if !ok || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			f.lines = append(f.lines, line{raw: raw})
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			f.lines = append(f.lines, line{raw: raw})
			continue
		}
		f.lines = append(f.lines, line{raw: raw, key: k, value: decodeValue(v), isKV: true})
		f.index[k] = len(f.lines) - 1
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}
	return f, nil
}

// Load reads the document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// Get returns the value of key.
func (f *File) Get(key string) (string, bool) {
	i, ok := f.index[key]
	if !ok {
		return "", false
	}
	return f.lines[i].value, true
}

// Set replaces or appends key. Values cannot span lines.
func (f *File) Set(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\r\n") || strings.TrimSpace(key) != key {
		return fmt.Errorf("invalid env key %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("value for %s must not contain line breaks", key)
	}
	l := line{raw: key + "=" + encodeValue(value), key: key, value: value, isKV: true}
	if i, ok := f.index[key]; ok {
		f.lines[i] = l
		return nil
	}
	f.lines = append(f.lines, l)
	f.index[key] = len(f.lines) - 1
	return nil
}

// encodeValue quotes v when a plain write would not read back unchanged.
func encodeValue(v string) string {
	if v != strings.TrimSpace(v) || strings.HasPrefix(v, `"`) {
		return strconv.Quote(v)
	}
	return v
}

func decodeValue(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		if u, err := strconv.Unquote(v); err == nil {
			return u
		}
	}
	return v
}

// Delete removes every occurrence of key.
func (f *File) Delete(key string) {
	if _, ok := f.index[key]; !ok {
		return
	}
	kept := f.lines[:0]
	for _, l := range f.lines {
		if l.isKV && l.key == key {
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	f.reindex()
}

func (f *File) reindex() {
	f.index = make(map[string]int, len(f.lines))
	for i, l := range f.lines {
		if l.isKV {
			f.index[l.key] = i
		}
	}
}

// Values returns the effective key/value pairs.
func (f *File) Values() map[string]string {
	out := make(map[string]string, len(f.index))
	for k, i := range f.index {
		out[k] = f.lines[i].value
	}
	return out
}

// Keys returns effective keys in first-appearance order.
func (f *File) Keys() []string {
	seen := make(map[string]bool, len(f.index))
	var keys []string
	for _, l := range f.lines {
		if l.isKV && !seen[l.key] {
			seen[l.key] = true
			keys = append(keys, l.key)
		}
	}
	return keys
}

// Bytes renders the document, one line each, newline terminated.
func (f *File) Bytes() []byte {
	var b bytes.Buffer
	for i, l := range f.lines {
		if l.isKV && f.index[l.key] != i {
			// shadowed duplicate
			continue
		}
		b.WriteString(l.raw)
		b.WriteByte('\n')
	}
	return b.Bytes()
}
