package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultAllowedRootsEnv is the environment variable consulted for extra
// absolute roots.
const DefaultAllowedRootsEnv = "MCP_ALLOWED_ROOTS"

// EnvSource looks up an environment variable. It has the shape of
// os.LookupEnv so tests can substitute a map.
type EnvSource func(key string) (string, bool)

// MapEnv returns an EnvSource backed by a fixed map.
func MapEnv(vars map[string]string) EnvSource {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// Root is a canonical project directory that resolves and confines paths.
// A Root is immutable and safe for concurrent use.
type Root struct {
	dir    string
	envKey string
	env    EnvSource
}

// Option configures a Root.
type Option func(*Root)

// WithEnv sets the environment lookup used for allowed roots.
// Defaults to os.LookupEnv.
func WithEnv(env EnvSource) Option {
	return func(r *Root) {
		if env != nil {
			r.env = env
		}
	}
}

// WithAllowedRootsEnv changes the name of the allowed-roots variable.
func WithAllowedRootsEnv(key string) Option {
	return func(r *Root) {
		if key != "" {
			r.envKey = key
		}
	}
}

// NewRoot canonicalizes dir and returns a Root anchored there.
// The directory does not have to exist.
func NewRoot(dir string, opts ...Option) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrEmptyPath
	}
	canon, err := Canonicalize(ExpandHome(dir))
	if err != nil {
		return nil, err
	}
	r := &Root{
		dir:    canon,
		envKey: DefaultAllowedRootsEnv,
		env:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the canonical root directory.
func (r *Root) Dir() string {
	return r.dir
}

// AllowedRoots returns the canonical allowed roots currently configured in
// the environment. The variable is read on every call.
func (r *Root) AllowedRoots() []string {
	raw, _ := r.env(r.envKey)
	return ParseAllowedRoots(raw)
}

// Resolve returns the canonical absolute path for userPath, or an error
// matching ErrInvalidPath when the path is rejected.
func (r *Root) Resolve(userPath string) (string, error) {
	s := strings.TrimSpace(userPath)
	if s == "" {
		return "", ErrEmptyPath
	}
	p := ExpandHome(s)

	if !filepath.IsAbs(p) {
		resolved, err := Canonicalize(filepath.Join(r.dir, p))
		if err != nil {
			return "", err
		}
		if !Within(resolved, r.dir) {
			return "", ErrEscapesRoot
		}
		return resolved, nil
	}

	resolved, err := Canonicalize(p)
	if err != nil {
		return "", err
	}
	if Within(resolved, r.dir) {
		return resolved, nil
	}
	allowed := r.AllowedRoots()
	if len(allowed) == 0 {
		return "", ErrAbsoluteDisabled
	}
	for _, a := range allowed {
		if Within(resolved, a) {
			return resolved, nil
		}
	}
	return "", ErrOutsideAllowed
}

// Contains reports whether the canonical form of p lies inside the root.
func (r *Root) Contains(p string) bool {
	canon, err := Canonicalize(p)
	if err != nil {
		return false
	}
	return Within(canon, r.dir)
}

// Rel returns p relative to the root in forward-slash form. The second
// result is false when p is not inside the root.
func (r *Root) Rel(p string) (string, bool) {
	canon, err := Canonicalize(p)
	if err != nil || !Within(canon, r.dir) {
		return "", false
	}
	rel, err := filepath.Rel(r.dir, canon)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Within reports whether path equals root or is a descendant of it.
// Both arguments must already be canonical.
func Within(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// maxSymlinkHops bounds how many dangling links Canonicalize follows.
const maxSymlinkHops = 40

// Canonicalize returns the absolute, symlink-resolved form of p. When p does
// not exist the nearest existing ancestor is resolved instead and the
// remaining components are appended. A dangling symlink among them is
// followed to its target, so the result names where the path will land once
// the target exists.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return canonicalize(abs, 0)
}

func canonicalize(abs string, hops int) (string, error) {
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}

	current := abs
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		if real, err := filepath.EvalSymlinks(parent); err == nil {
			return followTail(real, tail, hops)
		}
		current = parent
	}
}

// followTail appends tail to the resolved directory dir. Only the first
// component can exist; if it is a symlink the rest is resolved under its
// target.
func followTail(dir string, tail []string, hops int) (string, error) {
	first := filepath.Join(dir, tail[0])
	info, err := os.Lstat(first)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return filepath.Join(append([]string{dir}, tail...)...), nil
	}
	if hops >= maxSymlinkHops {
		return "", ErrSymlinkLoop
	}
	target, err := os.Readlink(first)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return canonicalize(filepath.Join(append([]string{target}, tail[1:]...)...), hops+1)
}

// ParseAllowedRoots splits an allowed-roots value into canonical
// directories. Empty entries are dropped.
func ParseAllowedRoots(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	var parts []string
	for _, chunk := range strings.Split(s, ";") {
		parts = append(parts, filepath.SplitList(chunk)...)
	}

	roots := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part == "" {
			continue
		}
		canon, err := Canonicalize(ExpandHome(part))
		if err != nil {
			continue
		}
		roots = append(roots, canon)
	}
	return roots
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
