package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB of
// space available. Transcoding writes full segment sets to scratch before
// publishing, so running out mid-encode fails jobs late and messily.
func CheckFreeSpace(name, path string, minGiB int) Result {
	if minGiB <= 0 {
		return Result{Name: name, Passed: true, Detail: "check disabled"}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGiB := float64(availableBytes) / (1 << 30)
	if availableBytes < uint64(minGiB)<<30 {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%.1f GiB available, %d GiB required", availableGiB, minGiB),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%.1f GiB available", availableGiB),
	}
}
