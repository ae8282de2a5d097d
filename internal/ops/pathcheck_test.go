package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/errors"
)

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := unsafeConfig()
	for _, p := range []string{"../out.jsonl", "/tmp/../etc/out.jsonl", "a/b/../../../x.jsonl"} {
		if err := ValidatePath(p, PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", p, err)
		}
	}
}

func TestValidatePath_DotsInNameAllowed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "elements..v2.jsonl")
	if err := ValidatePath(p, PathCheckWrite, unsafeConfig()); err != nil {
		t.Errorf("ValidatePath(%q) = %v", p, err)
	}
}

func TestValidatePath_ExtensionRequired(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out", "out.json", "out.jsonl.txt"} {
		if err := ValidatePath(filepath.Join(dir, name), PathCheckWrite, unsafeConfig()); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("%s: err = %v, want INVALID_REQUEST", name, err)
		}
	}
}

func TestValidatePath_EmptyPath(t *testing.T) {
	if err := ValidatePath("", PathCheckRead, nil); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.jsonl")
	if err := ValidatePath(p, PathCheckWrite, config.DefaultConfig()); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST outside allowed dirs", err)
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir, "relative/ignored"}

	if err := ValidatePath(filepath.Join(dir, "out.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("allowed dir: %v", err)
	}

	nested := filepath.Join(dir, "sub", "out.jsonl")
	if err := ValidatePath(nested, PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nested: err = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_ReadRequiresFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing.jsonl")
	if err := ValidatePath(p, PathCheckRead, unsafeConfig()); !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
	if err := ValidatePath(p, PathCheckWrite, unsafeConfig()); err != nil {
		t.Errorf("write to a new file: %v", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.jsonl")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(link, mode, unsafeConfig()); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("mode %d: err = %v, want INVALID_REQUEST", mode, err)
		}
	}
}

func TestValidatePath_SymlinkedParentRejected(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0700); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{link}
	// The allowed entry resolves to real/, so link/ itself is not an allowed parent.
	if err := ValidatePath(filepath.Join(link, "out.jsonl"), PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
	if err := ValidatePath(filepath.Join(real, "out.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("resolved dir: %v", err)
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"button#save.primary", "button#save.primary"},
		{"a/b\\c", "a-b-c"},
		{"../..", "unnamed"},
		{"x\x00y", "xy"},
		{"", "unnamed"},
	}
	for _, tc := range tests {
		if got := SanitizeForFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
