package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T, env map[string]string) *Root {
	t.Helper()
	root, err := NewRoot(t.TempDir(), WithEnv(MapEnv(env)))
	require.NoError(t, err)
	return root
}

func TestResolve_RelativeInsideRoot(t *testing.T) {
	root := newTestRoot(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(root.Dir(), "pkg"), 0o755))

	got, err := root.Resolve("pkg/mod.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root.Dir(), "pkg", "mod.py"), got)
}

func TestResolve_RootItself(t *testing.T) {
	root := newTestRoot(t, nil)

	got, err := root.Resolve(".")
	require.NoError(t, err)
	assert.Equal(t, root.Dir(), got)
}

func TestResolve_Empty(t *testing.T) {
	root := newTestRoot(t, nil)

	for _, in := range []string{"", "   ", "\t\n"} {
		_, err := root.Resolve(in)
		assert.ErrorIs(t, err, ErrEmptyPath, "input %q", in)
		assert.ErrorIs(t, err, ErrInvalidPath, "input %q", in)
		assert.NotErrorIs(t, err, ErrPathViolation, "input %q", in)
	}
}

func TestResolve_TraversalEscapes(t *testing.T) {
	root := newTestRoot(t, nil)

	for _, in := range []string{"..", "../x.py", "a/../../x.py", "../../etc/passwd"} {
		_, err := root.Resolve(in)
		assert.ErrorIs(t, err, ErrEscapesRoot, "input %q", in)
		assert.ErrorIs(t, err, ErrPathViolation, "input %q", in)
		assert.Equal(t, "path escapes root directory", err.Error())
	}
}

func TestResolve_SiblingPrefixIsOutside(t *testing.T) {
	parent := t.TempDir()
	rootDir := filepath.Join(parent, "proj")
	require.NoError(t, os.MkdirAll(rootDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "proj2"), 0o755))

	root, err := NewRoot(rootDir, WithEnv(MapEnv(nil)))
	require.NoError(t, err)

	_, err = root.Resolve("../proj2/x.py")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestResolve_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newTestRoot(t, nil)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root.Dir(), "link")))

	_, err := root.Resolve("link/secret.py")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestResolve_DanglingSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newTestRoot(t, nil)
	outside := t.TempDir()
	later := filepath.Join(outside, "later")
	require.NoError(t, os.Symlink(later, filepath.Join(root.Dir(), "evil")))

	_, err := root.Resolve("evil/secret.txt")
	assert.ErrorIs(t, err, ErrEscapesRoot)

	// Once the target exists the same answer holds.
	require.NoError(t, os.MkdirAll(later, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(later, "secret.txt"), []byte("outside data"), 0o644))
	_, err = root.Resolve("evil/secret.txt")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestResolve_DanglingSymlinkInsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newTestRoot(t, nil)
	require.NoError(t, os.Symlink("build/out", filepath.Join(root.Dir(), "current")))

	got, err := root.Resolve("current/report.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root.Dir(), "build", "out", "report.txt"), got)
}

func TestResolve_SymlinkLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newTestRoot(t, nil)
	require.NoError(t, os.Symlink("b", filepath.Join(root.Dir(), "a")))
	require.NoError(t, os.Symlink("a", filepath.Join(root.Dir(), "b")))

	_, err := root.Resolve("a/x.py")
	assert.ErrorIs(t, err, ErrSymlinkLoop)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

// Parent references are cleaned before links are followed, so link/..
// names the directory holding the link.
func TestResolve_DotDotAfterSymlinkIsLexical(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := newTestRoot(t, nil)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root.Dir(), "link")))

	got, err := root.Resolve("link/../x.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root.Dir(), "x.py"), got)
}

func TestResolve_AbsoluteInsideRoot(t *testing.T) {
	root := newTestRoot(t, nil)
	p := filepath.Join(root.Dir(), "a.py")

	got, err := root.Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestResolve_AbsoluteDisabled(t *testing.T) {
	root := newTestRoot(t, nil)
	outside := t.TempDir()

	_, err := root.Resolve(filepath.Join(outside, "a.py"))
	assert.ErrorIs(t, err, ErrAbsoluteDisabled)
	assert.ErrorIs(t, err, ErrPathViolation)
	assert.Contains(t, err.Error(), "MCP_ALLOWED_ROOTS")
}

func TestResolve_AbsoluteInAllowedRoot(t *testing.T) {
	allowed, err := Canonicalize(t.TempDir())
	require.NoError(t, err)
	root := newTestRoot(t, map[string]string{DefaultAllowedRootsEnv: allowed})

	got, err := root.Resolve(filepath.Join(allowed, "x", "y.py"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(allowed, "x", "y.py"), got)
}

func TestResolve_AbsoluteOutsideAllowedRoots(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	root := newTestRoot(t, map[string]string{DefaultAllowedRootsEnv: allowed})

	_, err := root.Resolve(filepath.Join(other, "y.py"))
	assert.ErrorIs(t, err, ErrOutsideAllowed)
	assert.Equal(t, "path is outside allowed roots", err.Error())
}

func TestResolve_EnvReadPerCall(t *testing.T) {
	allowed := t.TempDir()
	env := map[string]string{}
	root, err := NewRoot(t.TempDir(), WithEnv(MapEnv(env)))
	require.NoError(t, err)
	target := filepath.Join(allowed, "z.py")

	_, err = root.Resolve(target)
	require.ErrorIs(t, err, ErrAbsoluteDisabled)

	env[DefaultAllowedRootsEnv] = allowed
	_, err = root.Resolve(target)
	assert.NoError(t, err)
}

func TestResolve_CustomEnvKey(t *testing.T) {
	allowed := t.TempDir()
	root, err := NewRoot(t.TempDir(),
		WithAllowedRootsEnv("EXTRA_ROOTS"),
		WithEnv(MapEnv(map[string]string{"EXTRA_ROOTS": allowed})),
	)
	require.NoError(t, err)

	_, err = root.Resolve(filepath.Join(allowed, "z.py"))
	assert.NoError(t, err)
}

func TestResolve_Idempotent(t *testing.T) {
	root := newTestRoot(t, nil)

	first, err := root.Resolve("sub/dir/../file.py")
	require.NoError(t, err)
	second, err := root.Resolve(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseAllowedRoots(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	ca, _ := Canonicalize(a)
	cb, _ := Canonicalize(b)
	sep := string(os.PathListSeparator)

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "whitespace", raw: "   ", want: nil},
		{name: "single", raw: a, want: []string{ca}},
		{name: "semicolon", raw: a + ";" + b, want: []string{ca, cb}},
		{name: "os separator", raw: a + sep + b, want: []string{ca, cb}},
		{name: "quoted", raw: `"` + a + `" ; "` + b + `"`, want: []string{ca, cb}},
		{name: "empty entries", raw: ";;" + a + ";;", want: []string{ca}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAllowedRoots(tt.raw)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("work", "proj")

	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a.py"), true},
		{filepath.Join(root, "..", "proj2", "a.py"), false},
		{root + "2", false},
		{filepath.Join(root, "..dots"), true},
		{sep + "work", false},
	}
	for _, tt := range tests {
		if got := Within(filepath.Clean(tt.path), root); got != tt.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tt.path, root, got, tt.want)
		}
	}
}

func TestRootRel(t *testing.T) {
	root := newTestRoot(t, nil)

	rel, ok := root.Rel(filepath.Join(root.Dir(), "tests", "test_a.py"))
	assert.True(t, ok)
	assert.Equal(t, "tests/test_a.py", rel)

	rel, ok = root.Rel(root.Dir())
	assert.True(t, ok)
	assert.Equal(t, ".", rel)

	_, ok = root.Rel(t.TempDir())
	assert.False(t, ok)
}

func TestCanonicalize_MissingTail(t *testing.T) {
	dir, err := Canonicalize(t.TempDir())
	require.NoError(t, err)

	got, err := Canonicalize(filepath.Join(dir, "missing", "deeper", "f.py"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "missing", "deeper", "f.py"), got)
}

func TestNewRoot_Empty(t *testing.T) {
	_, err := NewRoot("  ")
	if !errors.Is(err, ErrEmptyPath) {
		t.Errorf("NewRoot() error = %v, want %v", err, ErrEmptyPath)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("~user/x"); !strings.HasPrefix(got, "~user") {
		t.Errorf("ExpandHome(~user/x) = %q, want unchanged", got)
	}
}
