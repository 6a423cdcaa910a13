// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// applyStarlark evaluates the Starlark file at path. It may define any of
// these globals:
//
//	query = "..."          # overrides PERPLEXITY_QUERY
//	image_prompt = "..."   # overrides IMAGE_PROMPT
//	styles = [...]         # image style rotation
//	angles = [...]         # camera angle rotation
//	lighting = [...]       # lighting rotation
//
// Other globals are ignored, so the file is free to use helper variables.
func (c *Config) applyStarlark(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return c.applyStarlarkSource(path, src)
}

func (c *Config) applyStarlarkSource(filename string, src []byte) error {
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{TopLevelControl: true},
		&starlark.Thread{
			Name:  "config",
			Print: func(*starlark.Thread, string) {},
		},
		filename,
		src,
		nil,
	)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", filename, err)
	}

	for name, dst := range map[string]*string{
		"query":        &c.Query,
		"image_prompt": &c.ImagePrompt,
	} {
		v, ok := globals[name]
		if !ok {
			continue
		}
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("%s: %s must be a string, got %s", filename, name, v.Type())
		}
		*dst = s
	}

	for name, dst := range map[string]*[]string{
		"styles":   &c.Styles,
		"angles":   &c.Angles,
		"lighting": &c.Lighting,
	} {
		v, ok := globals[name]
		if !ok {
			continue
		}
		list, err := stringList(name, v)
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		*dst = list
	}
	return nil
}

func stringList(name string, v starlark.Value) ([]string, error) {
	seq, ok := v.(starlark.Indexable)
	if _, isString := v.(starlark.String); !ok || isString {
		return nil, fmt.Errorf("%s must be a list of strings, got %s", name, v.Type())
	}
	if seq.Len() == 0 {
		return nil, fmt.Errorf("%s must not be empty", name)
	}
	out := make([]string, 0, seq.Len())
	for i := range seq.Len() {
		s, ok := starlark.AsString(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string, got %s", name, i, seq.Index(i).Type())
		}
		out = append(out, s)
	}
	return out, nil
}
