package preflight

import (
	"context"

	"hlsforge/internal/config"
	"hlsforge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	if cfg.Paths.LibraryDir != "" {
		results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	}
	results = append(results, CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, cfg.Workflow.MinFreeSpaceGiB))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: statusDetail(status),
		})
	}

	return results
}

// Passed reports whether every result in the set succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out to.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func statusDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	return status.Detail
}
