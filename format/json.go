package format

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dhamidi/decaf/decompiler"
)

// JSONEncoder writes the report as an indented JSON document. With
// NodesOnly set only the class tree is written.
type JSONEncoder struct {
	w         io.Writer
	res       *decompiler.Result
	NodesOnly bool
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(res *decompiler.Result) error {
	e.res = res
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(text, '\n'))
	return err
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	return json.MarshalIndent(view(e.res, e.NodesOnly), "", "  ")
}

// YAMLEncoder writes the same document as JSONEncoder in YAML.
type YAMLEncoder struct {
	w         io.Writer
	res       *decompiler.Result
	NodesOnly bool
}

func NewYAMLEncoder(w io.Writer) *YAMLEncoder {
	return &YAMLEncoder{w: w}
}

func (e *YAMLEncoder) Encode(res *decompiler.Result) error {
	e.res = res
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *YAMLEncoder) MarshalText() ([]byte, error) {
	return yaml.Marshal(view(e.res, e.NodesOnly))
}

func view(res *decompiler.Result, nodesOnly bool) *Report {
	r := NewReport(res)
	if nodesOnly {
		return &Report{Nodes: r.Nodes}
	}
	return r
}
