package stage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gridbatch/internal/apperrors"
)

func TestStageWritesFullContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(Config{Dir: dir})

	content := "a = LOAD 'input';\nSTORE a INTO 'output';\n"
	loc, err := s.Stage(content)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	got, err := os.ReadFile(loc.Path)
	if err != nil {
		t.Fatalf("failed to read staged file: %v", err)
	}
	if string(got) != content {
		t.Errorf("staged content mismatch: got %q", got)
	}
}

func TestStageNameFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(Config{Dir: dir, Prefix: "job-script-", Suffix: ".pig"})

	loc, err := s.Stage("x = 1;")
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	name := filepath.Base(loc.Path)
	if !strings.HasPrefix(name, "job-script-") {
		t.Errorf("expected job-script- prefix, got %q", name)
	}
	if !strings.HasSuffix(name, ".pig") {
		t.Errorf("expected .pig suffix, got %q", name)
	}
	if filepath.Dir(loc.Path) != dir {
		t.Errorf("expected staged file in %s, got %s", dir, loc.Path)
	}
}

func TestStageUnwritableDir(t *testing.T) {
	t.Parallel()

	s := New(Config{Dir: filepath.Join(t.TempDir(), "does-not-exist")})

	_, err := s.Stage("x = 1;")
	if err == nil {
		t.Fatal("expected error for unwritable staging dir")
	}
	if !errors.Is(err, apperrors.ErrStaging) {
		t.Errorf("expected staging error, got %v", err)
	}
}
