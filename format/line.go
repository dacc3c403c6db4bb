package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/decaf/decompiler"
)

// LineEncoder writes one tab-separated record per line: class, field
// initializer and method records, each method followed by its indented
// body outline, then one record per failure.
type LineEncoder struct {
	w   io.Writer
	res *decompiler.Result
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(res *decompiler.Result) error {
	e.res = res
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	r := NewReport(e.res)
	for _, c := range r.Classes {
		fmt.Fprintf(&sb, "class\t%s\n", c.Name)
		for _, fi := range c.StaticInit {
			fmt.Fprintf(&sb, "static\t%s\t%s\n", fi.Name, fi.Value)
		}
		for _, fi := range c.InstanceInit {
			fmt.Fprintf(&sb, "field\t%s\t%s\n", fi.Name, fi.Value)
		}
		for _, m := range c.Methods {
			fmt.Fprintf(&sb, "method\t%s\t%s\t%s\n", m.Name, m.Descriptor, m.Status)
			for _, line := range m.Body {
				fmt.Fprintf(&sb, "\t%s\n", line)
			}
		}
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&sb, "failure\t%s\t%s%s\t%s\t%s\n", f.Class, f.Method, f.Desc, f.Status, f.Error)
	}
	return []byte(sb.String()), nil
}

// TreeEncoder writes the class tree as an indented outline.
type TreeEncoder struct {
	w   io.Writer
	res *decompiler.Result
}

func NewTreeEncoder(w io.Writer) *TreeEncoder {
	return &TreeEncoder{w: w}
}

func (e *TreeEncoder) Encode(res *decompiler.Result) error {
	e.res = res
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *TreeEncoder) MarshalText() ([]byte, error) {
	return []byte(e.res.Tree.Outline()), nil
}
