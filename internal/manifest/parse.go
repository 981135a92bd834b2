package manifest

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// ParseBytes parses a raw manifest document. Malformed JSON is reported as
// StatusNoManifest rather than an error so callers handle one shape.
func ParseBytes(raw []byte) Script {
	var p fastjson.Parser
	tree, err := p.ParseBytes(raw)
	if err != nil {
		return Script{Status: StatusNoManifest, Warnings: []string{"invalid manifest json: " + err.Error()}}
	}
	return Parse(tree)
}

// Parse turns a generic JSON tree into a Script. It never fails as a whole:
// document-level problems are reported through Script.Status and
// step-level problems through Directive.Problem.
func Parse(tree *fastjson.Value) Script {
	var s Script
	if tree == nil || tree.Type() != fastjson.TypeObject {
		s.Status = StatusNoManifest
		return s
	}

	results := tree.GetArray("results")
	if tree.GetInt("count") != 1 || len(results) == 0 {
		s.Status = StatusAmbiguousOrMissingSlug
		return s
	}
	slug := results[0]
	// Display fields are read first so a script-less result can still be shown.
	s.Name = s.requiredText(slug, "name")
	s.Version = s.requiredText(slug, "version")
	s.Runner = ParseRunner(optionalText(slug, "runner"))
	s.Description = optionalText(slug, "description")
	s.Notes = optionalText(slug, "notes")

	script := slug.Get("script")
	if script == nil || script.Type() != fastjson.TypeObject {
		s.Status = StatusNoScript
		return s
	}
	s.WineVersion = optionalText(script, "wine", "version")

	if files := script.Get("files"); files != nil {
		s.Files = s.parseFiles(files)
	}

	installer := script.Get("installer")
	if installer == nil || installer.Type() != fastjson.TypeArray {
		s.Status = StatusNoInstallSteps
		return s
	}
	steps, _ := installer.Array()
	s.Directives = make([]Directive, 0, len(steps))
	for _, step := range steps {
		s.Directives = append(s.Directives, parseStep(step))
	}
	s.Status = StatusOK
	return s
}

func (s *Script) requiredText(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("missing %s", key))
		return ""
	}
	text, err := scalarText(f)
	if err != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", key, err))
		return ""
	}
	return text
}

func optionalText(v *fastjson.Value, keys ...string) string {
	f := v.Get(keys...)
	if f == nil {
		return ""
	}
	text, err := scalarText(f)
	if err != nil {
		return ""
	}
	return text
}

// parseFiles accepts both the wire shape (array of single-key objects) and a
// plain object. Either way the key is the filename and the value is a URL
// string or an object carrying "url". Declaration order is preserved.
func (s *Script) parseFiles(v *fastjson.Value) []FileRef {
	var out []FileRef
	add := func(key []byte, val *fastjson.Value) {
		name := string(key)
		url, err := fileURL(val)
		if err != nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("file %q skipped: %v", name, err))
			return
		}
		out = append(out, FileRef{Filename: name, URL: url})
	}

	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		o.Visit(add)
	case fastjson.TypeArray:
		items, _ := v.Array()
		for i, item := range items {
			o, err := item.Object()
			if err != nil {
				s.Warnings = append(s.Warnings, fmt.Sprintf("files[%d] skipped: expected object, got %s", i, item.Type()))
				continue
			}
			o.Visit(add)
		}
	default:
		s.Warnings = append(s.Warnings, fmt.Sprintf("files ignored: expected array or object, got %s", v.Type()))
	}
	return out
}

func fileURL(v *fastjson.Value) (string, error) {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes()), nil
	case fastjson.TypeObject:
		u := v.Get("url")
		if u == nil || u.Type() != fastjson.TypeString {
			return "", fmt.Errorf("object has no url string")
		}
		return string(u.GetStringBytes()), nil
	default:
		return "", fmt.Errorf("expected url string or object, got %s", v.Type())
	}
}

func parseStep(step *fastjson.Value) Directive {
	if step == nil || step.Type() != fastjson.TypeObject {
		return degraded("", "step is not an object")
	}
	for _, cs := range commandTable {
		body := step.Get(cs.keyword)
		if body == nil {
			continue
		}
		return cs.build(body)
	}
	return degraded(firstKey(step), "no recognized directive keyword")
}

func (cs commandSchema) build(body *fastjson.Value) Directive {
	d := Directive{Command: cs.command, Keyword: cs.keyword}
	fields := cs.fields

	if cs.command == CommandTask {
		if body.Type() != fastjson.TypeObject {
			return degraded(cs.keyword, fmt.Sprintf("expected object, got %s", body.Type()))
		}
		nameVal := body.Get("name")
		if nameVal == nil {
			return degraded(cs.keyword, "missing task name")
		}
		name, err := scalarText(nameVal)
		if err != nil {
			return degraded(cs.keyword, "task name: "+err.Error())
		}
		ts, ok := lookupTaskKeyword(name)
		if !ok {
			d.Task = TaskUnknown
			d.Arguments = []string{}
			d.Problem = fmt.Sprintf("unknown task %q", name)
			return d
		}
		d.Task = ts.task
		fields = ts.fields
	}

	args, err := extractArguments(body, fields, cs.scalarBody)
	if err != nil {
		return degraded(cs.keyword, err.Error())
	}
	d.Arguments = args
	return d
}

func extractArguments(body *fastjson.Value, fields []field, scalarBody bool) ([]string, error) {
	args := make([]string, 0, len(fields))
	if body.Type() != fastjson.TypeObject {
		if !scalarBody || len(fields) != 1 {
			return nil, fmt.Errorf("expected object, got %s", body.Type())
		}
		text, err := scalarText(body)
		if err != nil {
			return nil, err
		}
		return append(args, text), nil
	}

	for _, f := range fields {
		val, key := firstPresent(body, f.names)
		if val == nil {
			if f.optional {
				args = append(args, "")
				continue
			}
			return nil, fmt.Errorf("missing field %s", strings.Join(f.names, "|"))
		}
		if f.raw {
			args = append(args, rawText(val))
			continue
		}
		text, err := scalarText(val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		args = append(args, text)
	}
	return args, nil
}

func firstPresent(v *fastjson.Value, names []string) (*fastjson.Value, string) {
	for _, n := range names {
		if f := v.Get(n); f != nil {
			return f, n
		}
	}
	return nil, ""
}

// scalarText renders strings verbatim and numbers/booleans as their JSON
// literal. Structured values and null are rejected.
func scalarText(v *fastjson.Value) (string, error) {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes()), nil
	case fastjson.TypeNumber, fastjson.TypeTrue, fastjson.TypeFalse:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %s", v.Type())
	}
}

func rawText(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

func firstKey(v *fastjson.Value) string {
	o, err := v.Object()
	if err != nil {
		return ""
	}
	var first string
	o.Visit(func(k []byte, _ *fastjson.Value) {
		if first == "" {
			first = string(k)
		}
	})
	return first
}

func degraded(keyword, problem string) Directive {
	return Directive{Command: CommandUnknown, Arguments: []string{}, Keyword: keyword, Problem: problem}
}
