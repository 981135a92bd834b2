package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/goccy/go-json"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/prompt"
	"github.com/marcohefti/polecat/internal/store"
)

func (x *Executor) extract(ctx context.Context, fileArg, dstArg string) error {
	if x.env.Extractor == nil {
		return errors.New("no archive extractor configured")
	}
	dest := x.env.Root
	if dstArg != "" {
		d, err := x.destination(dstArg)
		if err != nil {
			return err
		}
		dest = d
	}

	var (
		name string
		r    io.ReadCloser
	)
	if f, ok := x.staged(fileArg); ok {
		rs, err := f.Open()
		if err != nil {
			return err
		}
		name, r = f.Filename(), rs
	} else {
		p, err := x.source(fileArg)
		if err != nil {
			return err
		}
		fh, err := os.Open(p)
		if err != nil {
			return err
		}
		name, r = filepath.Base(p), fh
	}
	defer r.Close()

	res, err := x.env.Extractor.Extract(ctx, name, r, dest)
	if err != nil {
		return err
	}
	x.log.Debug("extracted", zap.String("archive", name), zap.String("format", res.Format), zap.Int("entries", res.Entries))
	x.produced(dest)
	return nil
}

// chmodx marks a file executable. Without an explicit target it applies to
// the most recent path a directive produced, provided that is a regular file.
func (x *Executor) chmodx(target string) error {
	var (
		p   string
		st  os.FileInfo
		err error
	)
	if target != "" {
		if p, err = x.destination(target); err != nil {
			return err
		}
		if st, err = os.Stat(p); err != nil {
			return err
		}
	} else {
		if x.lastPath == "" {
			return ErrNoTarget
		}
		p = x.lastPath
		if st, err = os.Stat(p); err != nil {
			return err
		}
		if !st.Mode().IsRegular() {
			return fmt.Errorf("%w: last path %s is not a file", ErrNoTarget, p)
		}
	}
	if err := os.Chmod(p, st.Mode().Perm()|0o111); err != nil {
		return err
	}
	x.produced(p)
	return nil
}

// executable turns a command token into a runnable path: staged files are
// written to the cache dir, paths are resolved, bare names go through PATH.
func (x *Executor) executable(tok string) (string, error) {
	if f, ok := x.staged(tok); ok {
		if p, done := x.materialized[f.Filename()]; done {
			return p, nil
		}
		p, err := x.destination(filepath.Join(x.env.CacheDir, filepath.Base(f.Filename())))
		if err != nil {
			return "", err
		}
		if err := x.materialize(f, p, 0o755); err != nil {
			return "", err
		}
		x.materialized[f.Filename()] = p
		x.produced(p)
		return p, nil
	}
	if !strings.ContainsRune(tok, '/') && !strings.HasPrefix(tok, "$") {
		return tok, nil
	}
	p, err := x.source(tok)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

func (x *Executor) execute(ctx context.Context, command string) error {
	words, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(words) == 0 {
		return errors.New("empty command")
	}
	exe, err := x.executable(words[0])
	if err != nil {
		return err
	}
	argv := []string{exe}
	for _, w := range words[1:] {
		argv = append(argv, x.expand(w))
	}
	return x.spawn(ctx, process.Spec{Argv: argv})
}

func (x *Executor) spawn(ctx context.Context, spec process.Spec) error {
	if x.env.Process == nil {
		return fmt.Errorf("%w: no process runner configured", process.ErrSpawn)
	}
	if spec.Dir == "" {
		spec.Dir = x.env.Root
	}
	spec.Stdout = x.env.Stdout
	spec.Stderr = x.env.Stderr
	res, err := x.env.Process.Run(ctx, spec)
	if err != nil {
		var ee *process.ExitError
		if errors.As(err, &ee) && strings.TrimSpace(res.ErrPreview) != "" {
			return fmt.Errorf("%w: %s", err, lastLine(res.ErrPreview))
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (x *Executor) writeFile(fileArg, content string) error {
	p, err := x.destination(fileArg)
	if err != nil {
		return err
	}
	if err := store.WriteFileAtomic(p, []byte(content)); err != nil {
		return err
	}
	x.produced(p)
	return nil
}

// writeJSON merges an object into the JSON object stored at fileArg, with
// incoming keys taking precedence. Non-object data replaces the file.
func (x *Executor) writeJSON(fileArg, data string) error {
	p, err := x.destination(fileArg)
	if err != nil {
		return err
	}
	var incoming any
	if err := json.Unmarshal([]byte(data), &incoming); err != nil {
		return fmt.Errorf("data is not valid JSON: %w", err)
	}

	result := incoming
	if obj, ok := incoming.(map[string]any); ok {
		existing := map[string]any{}
		raw, err := os.ReadFile(p)
		switch {
		case err == nil && len(bytes.TrimSpace(raw)) > 0:
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("existing %s is not a JSON object: %w", filepath.Base(p), err)
			}
		case err != nil && !os.IsNotExist(err):
			return err
		}
		if err := mergeJSON(existing, obj); err != nil {
			return err
		}
		result = existing
	}
	if err := store.WriteJSONAtomic(p, result); err != nil {
		return err
	}
	x.produced(p)
	return nil
}

// mergeJSON sets every key of src on dst. Where both sides hold an object the
// two are merged recursively; any other value replaces what was there.
func mergeJSON(dst, src map[string]any) error {
	for k, v := range src {
		sub, srcObj := v.(map[string]any)
		cur, dstObj := dst[k].(map[string]any)
		if srcObj && dstObj {
			if err := mergo.Merge(&cur, sub, mergo.WithOverride); err != nil {
				return fmt.Errorf("merge %q: %w", k, err)
			}
			dst[k] = cur
			continue
		}
		dst[k] = v
	}
	return nil
}

// writeConfig sets one INI key, keeping every other section and key.
func (x *Executor) writeConfig(fileArg, section, key, value string) error {
	p, err := x.destination(fileArg)
	if err != nil {
		return err
	}
	cfg, err := ini.LooseLoad(p)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(p), err)
	}
	cfg.Section(section).Key(key).SetValue(value)
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return err
	}
	if err := store.WriteFileAtomic(p, buf.Bytes()); err != nil {
		return err
	}
	x.produced(p)
	return nil
}

func (x *Executor) inputMenu(ctx context.Context, id, preselect, description string) error {
	if x.env.Prompter == nil {
		if preselect == "" {
			return errors.New("no prompter available and no preselected answer")
		}
		x.setInput(id, preselect)
		return nil
	}
	ans, err := x.env.Prompter.Choose(ctx, prompt.Menu{ID: id, Description: description, Preselect: preselect})
	if err != nil {
		return err
	}
	x.setInput(id, ans)
	return nil
}

func (x *Executor) setInput(id, ans string) {
	x.vars["INPUT"] = ans
	if id != "" {
		x.vars["INPUT_"+strings.ToUpper(id)] = ans
	}
}

// insertDisc blocks until the user names a path that contains requires.
func (x *Executor) insertDisc(ctx context.Context, requires string) error {
	if x.env.Prompter == nil {
		return errors.New("no prompter available")
	}
	rel := filepath.FromSlash(requires)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s", ErrPathEscape, requires)
	}
	disc, err := x.env.Prompter.InsertDisc(ctx, requires)
	if err != nil {
		return err
	}
	disc, err = filepath.Abs(disc)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(disc, rel)); err != nil {
		return fmt.Errorf("disc at %s does not contain %s: %w", disc, requires, err)
	}
	x.vars["DISC"] = disc
	return nil
}
