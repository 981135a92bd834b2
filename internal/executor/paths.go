package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/marcohefti/polecat/internal/staging"
)

// expand substitutes $NAME and ${NAME} from the run's variables. Unknown
// names are left as written.
func (x *Executor) expand(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := x.vars[name]; ok {
			return v
		}
		return "$" + name
	})
}

// staged resolves a reference to a staged file: the bare filename or "$name".
func (x *Executor) staged(ref string) (staging.File, bool) {
	if x.env.Files == nil || ref == "" {
		return nil, false
	}
	if f, ok := x.env.Files.Lookup(ref); ok {
		return f, true
	}
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		if _, isVar := x.vars[name]; !isVar {
			return x.env.Files.Lookup(name)
		}
	}
	return nil, false
}

// destination resolves a path that will be written to. It must land under
// the install root or the cache dir.
func (x *Executor) destination(arg string) (string, error) {
	return x.resolve(arg, x.env.Root, x.env.CacheDir)
}

// source resolves a path that is only read. A mounted disc is readable too.
func (x *Executor) source(arg string) (string, error) {
	return x.resolve(arg, x.env.Root, x.env.CacheDir, x.vars["DISC"])
}

// resolve expands arg, anchors relative paths at the install root and joins
// the result under the first root that contains it. Symlinks inside a root
// are followed without leaving it.
func (x *Executor) resolve(arg string, roots ...string) (string, error) {
	p := x.expand(arg)
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(x.env.Root, p)
	}
	p = filepath.Clean(p)
	for _, root := range roots {
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || !filepath.IsLocal(rel) {
			continue
		}
		return securejoin.SecureJoin(root, rel)
	}
	return "", fmt.Errorf("%w: %s", ErrPathEscape, arg)
}

func (x *Executor) isRoot(p string) bool {
	return filepath.Clean(p) == filepath.Clean(x.env.Root)
}
