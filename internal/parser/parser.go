// Package parser splits Markdown documents into YAML front matter and body,
// and rewrites front-matter properties in place.
package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Result holds the output of parsing a Markdown document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	// BodyLine is the zero-based line number of the first body line.
	BodyLine int
}

// Lines splits the body into lines without trailing carriage returns.
func (r *Result) Lines() []string {
	lines := strings.Split(r.Body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Parse separates YAML front matter (between leading --- delimiters) from
// the body. Missing or invalid front matter leaves the whole input as body.
func Parse(data []byte) (*Result, error) {
	block, body, line, ok := split(data)
	if !ok {
		return &Result{Body: string(data)}, nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		// Invalid YAML: fall back to body only.
		return &Result{Body: string(data)}, nil
	}
	return &Result{Frontmatter: fm, Body: string(body), BodyLine: line}, nil
}

// split locates the front-matter block. body starts on the line after the
// closing delimiter and bodyLine is its line number in data.
func split(data []byte) (block, body []byte, bodyLine int, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, data, 0, false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: treat everything as body.
		return nil, data, 0, false
	}

	block = rest[:idx]
	after := rest[idx+1+len(delim):]
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = nil
	}
	consumed := len(data) - len(after)
	return block, after, bytes.Count(data[:consumed], []byte("\n")), true
}

// UpdateFrontmatter sets the given properties in data's front matter,
// keeping existing key order and the body untouched. Keys are matched
// case-insensitively; new keys are appended in sorted order. A document
// without front matter gets one.
func UpdateFrontmatter(data []byte, updates map[string]any) ([]byte, error) {
	if len(updates) == 0 {
		return data, nil
	}

	block, body, _, ok := split(data)
	var doc yaml.Node
	if ok {
		if err := yaml.Unmarshal(block, &doc); err != nil {
			return nil, fmt.Errorf("parser: decode front matter: %w", err)
		}
	} else {
		body = data
	}

	mapping, err := rootMapping(&doc)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var value yaml.Node
		if err := value.Encode(updates[k]); err != nil {
			return nil, fmt.Errorf("parser: encode %s: %w", k, err)
		}
		setKey(mapping, k, &value)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("parser: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode front matter: %w", err)
	}
	buf.WriteString(delim + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func rootMapping(doc *yaml.Node) (*yaml.Node, error) {
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if doc.Kind != yaml.DocumentNode {
		return nil, fmt.Errorf("parser: unexpected front matter node kind %d", doc.Kind)
	}
	if len(doc.Content) == 0 {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parser: front matter is not a mapping")
	}
	return m, nil
}

func setKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if strings.EqualFold(mapping.Content[i].Value, key) {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
