package staging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/composition"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

var testDescriptor = composition.Descriptor{
	ID:                "X",
	DurationInSeconds: 5,
	FPS:               30,
	Width:             1080,
	Height:            1920,
}

func testOptions(t *testing.T) CreateOptions {
	t.Helper()
	return CreateOptions{
		StagingRoot: t.TempDir(),
		InputPath:   filepath.Join(string(filepath.Separator), "animations", "demo.tsx"),
		Descriptor:  testDescriptor,
		Logger:      logging.NewNop(),
	}
}

func TestCreateWritesEntryModule(t *testing.T) {
	project, err := Create(testOptions(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	defer project.Release()

	if !strings.HasPrefix(filepath.Base(project.Root), "render-") {
		t.Fatalf("unexpected project root name %q", project.Root)
	}

	data, err := os.ReadFile(project.EntryPath)
	if err != nil {
		t.Fatalf("read entry module: %v", err)
	}
	entry := string(data)
	for _, fragment := range []string{
		`"/animations/demo.tsx"`,
		`id="X"`,
		"durationInFrames={150}",
		"fps={30}",
		"width={1080}",
		"height={1920}",
		"registerRoot",
	} {
		if !strings.Contains(entry, fragment) {
			t.Fatalf("entry module missing %q:\n%s", fragment, entry)
		}
	}
}

func TestCreateUniqueAcrossRuns(t *testing.T) {
	opts := testOptions(t)

	first, err := Create(opts)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	defer first.Release()

	second, err := Create(opts)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	defer second.Release()

	if first.Root == second.Root {
		t.Fatalf("expected distinct staging directories, both %q", first.Root)
	}
}

func TestCreateDoesNotTouchInput(t *testing.T) {
	opts := testOptions(t)
	inputDir := t.TempDir()
	opts.InputPath = filepath.Join(inputDir, "demo.tsx")
	if err := os.WriteFile(opts.InputPath, []byte("export default null;"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	before, err := os.Stat(opts.InputPath)
	if err != nil {
		t.Fatalf("stat input: %v", err)
	}

	project, err := Create(opts)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	project.Release()

	after, err := os.Stat(opts.InputPath)
	if err != nil {
		t.Fatalf("input file disappeared: %v", err)
	}
	if after.ModTime() != before.ModTime() || after.Size() != before.Size() {
		t.Fatal("input file was modified by staging")
	}
}

func TestCreateRejectsRelativeInput(t *testing.T) {
	opts := testOptions(t)
	opts.InputPath = "demo.tsx"
	_, err := Create(opts)
	if err == nil {
		t.Fatal("expected error for relative input path")
	}
	if !errors.Is(err, services.ErrStaging) {
		t.Fatalf("expected staging marker, got %v", err)
	}
}

func TestCreateEnforcesFreeSpaceFloor(t *testing.T) {
	original := statfs
	statfs = func(string) (uint64, error) { return 1024, nil }
	t.Cleanup(func() { statfs = original })

	opts := testOptions(t)
	opts.MinFreeBytes = 1 << 30
	_, err := Create(opts)
	if err == nil {
		t.Fatal("expected error when below free-space floor")
	}
	if !errors.Is(err, services.ErrStaging) {
		t.Fatalf("expected staging marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient free space") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	project, err := Create(testOptions(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	project.Release()
	if _, err := os.Stat(project.Root); !os.IsNotExist(err) {
		t.Fatal("expected staging directory to be removed")
	}
	if !project.Released() {
		t.Fatal("expected Released to report true")
	}

	// Second release must be a no-op, as must releasing a nil project.
	project.Release()
	var nilProject *Project
	nilProject.Release()
}
