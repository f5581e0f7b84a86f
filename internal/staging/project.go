package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"reelforge/internal/composition"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// entryFileName is the generated entry module inside every staging project.
const entryFileName = "index.tsx"

// statfs reports the bytes available to unprivileged writes at path.
// Overridable for tests.
var statfs = func(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CreateOptions carries everything needed to stage one render run.
type CreateOptions struct {
	// StagingRoot is the parent directory for all staging projects.
	StagingRoot string
	// InputPath is the absolute path of the user's source file. It is only
	// referenced from the generated entry module, never copied or moved.
	InputPath string
	// Descriptor supplies the composition ID the entry module registers.
	Descriptor composition.Descriptor
	// MinFreeBytes, when positive, is the free-space floor enforced before
	// the project directory is created.
	MinFreeBytes int64
	Logger       *slog.Logger
}

// Project is a materialized staging directory owned by exactly one pipeline run.
type Project struct {
	Root      string
	EntryPath string

	logger   *slog.Logger
	released atomic.Bool
}

// Create materializes a staging project for the given input and descriptor.
// Directory names embed a fresh UUID so concurrent runs on the same host can
// never collide.
func Create(opts CreateOptions) (*Project, error) {
	if opts.StagingRoot == "" {
		return nil, services.Wrap(services.ErrStaging, "staging", "create", "staging root not configured", nil)
	}
	if opts.InputPath == "" || !filepath.IsAbs(opts.InputPath) {
		return nil, services.Wrap(services.ErrStaging, "staging", "create", fmt.Sprintf("input path %q must be absolute", opts.InputPath), nil)
	}

	if err := os.MkdirAll(opts.StagingRoot, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStaging, "staging", "create", "create staging root", err)
	}

	if opts.MinFreeBytes > 0 {
		free, err := statfs(opts.StagingRoot)
		if err != nil {
			return nil, services.Wrap(services.ErrStaging, "staging", "create", "probe free space", err)
		}
		if free < uint64(opts.MinFreeBytes) {
			return nil, services.Wrap(services.ErrStaging, "staging", "create",
				fmt.Sprintf("insufficient free space in %s: %d bytes available, %d required", opts.StagingRoot, free, opts.MinFreeBytes), nil)
		}
	}

	root := filepath.Join(opts.StagingRoot, "render-"+uuid.NewString())
	if err := os.Mkdir(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStaging, "staging", "create", "create project directory", err)
	}

	project := &Project{
		Root:      root,
		EntryPath: filepath.Join(root, entryFileName),
		logger:    logging.NewComponentLogger(opts.Logger, "stager"),
	}

	entry, err := renderEntryModule(opts.InputPath, opts.Descriptor)
	if err != nil {
		project.Release()
		return nil, services.Wrap(services.ErrStaging, "staging", "create", "render entry module", err)
	}
	if err := os.WriteFile(project.EntryPath, []byte(entry), 0o644); err != nil {
		project.Release()
		return nil, services.Wrap(services.ErrStaging, "staging", "create", "write entry module", err)
	}

	project.logger.Debug("staging project created",
		logging.String("root", project.Root),
		logging.String("entry", project.EntryPath),
	)
	return project, nil
}

// Release deletes the staging directory. It is idempotent and never returns
// an error: cleanup failures are logged so they cannot mask the run's primary
// result.
func (p *Project) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	if err := os.RemoveAll(p.Root); err != nil {
		p.logger.Warn("failed to remove staging directory",
			logging.String("path", p.Root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the directory manually or run `reelforge staging clean`"),
		)
		return
	}
	p.logger.Debug("staging project released", logging.String("path", p.Root))
}

// Released reports whether the project directory has already been torn down.
func (p *Project) Released() bool {
	return p != nil && p.released.Load()
}
