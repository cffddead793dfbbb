package guard

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// VolumeGuard checks the mount state of the protected volume. The volume is
// expected to stay unmounted; mounting is a manual, out-of-band operation.
type VolumeGuard struct {
	Name       string
	MountPoint string
}

// NewVolumeGuard returns a guard for the named volume under /Volumes.
func NewVolumeGuard(name string) *VolumeGuard {
	return &VolumeGuard{
		Name:       name,
		MountPoint: filepath.Join("/Volumes", name),
	}
}

// IsMounted reports whether the protected volume is currently mounted.
func (v *VolumeGuard) IsMounted() bool {
	info, err := os.Stat(v.MountPoint)
	if err != nil || !info.IsDir() {
		return false
	}
	parent, err := os.Stat(filepath.Dir(v.MountPoint))
	if err != nil {
		return false
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	parentSys, ok := parent.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	// A mount point sits on a different device than its parent directory.
	return sys.Dev != parentSys.Dev
}

// MountStatus is a point-in-time view of the protected volume.
type MountStatus struct {
	Mounted    bool      `json:"mounted"`
	VolumeName string    `json:"volume_name"`
	MountPoint string    `json:"mount_point"`
	Timestamp  time.Time `json:"timestamp"`
}

// Status returns the current mount state.
func (v *VolumeGuard) Status() MountStatus {
	return MountStatus{
		Mounted:    v.IsMounted(),
		VolumeName: v.Name,
		MountPoint: v.MountPoint,
		Timestamp:  time.Now(),
	}
}

// ForceUnmount unmounts the protected volume. It is a privileged operation
// reserved for the emergency lockdown path, never for normal validation.
// A graceful unmount is attempted before a forced one.
func (v *VolumeGuard) ForceUnmount(ctx context.Context) (bool, string) {
	if !v.IsMounted() {
		return true, "volume not mounted"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := runUnmount(ctx, false, v.MountPoint); err == nil {
		return true, "volume unmounted"
	}
	if err := runUnmount(ctx, true, v.MountPoint); err != nil {
		return false, fmt.Sprintf("unmount failed: %v", err)
	}
	return true, "volume force unmounted"
}

// runUnmount shells out to the platform unmount tool. diskutil exists on
// macOS; umount covers everything else.
func runUnmount(ctx context.Context, force bool, mountPoint string) error {
	if _, err := exec.LookPath("diskutil"); err == nil {
		args := []string{"unmount"}
		if force {
			args = append(args, "force")
		}
		args = append(args, mountPoint)
		return exec.CommandContext(ctx, "diskutil", args...).Run()
	}

	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, mountPoint)
	return exec.CommandContext(ctx, "umount", args...).Run()
}
