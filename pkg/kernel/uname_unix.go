//go:build linux
// +build linux

package kernel

import "golang.org/x/sys/unix"

// utsName mirrors the subset of struct utsname the kernel-version probe
// needs: the release string, as a fixed-size byte array matching
// unix.Utsname's layout.
type utsName struct {
	Release [65]byte
}

func uname() (*utsName, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return nil, err
	}
	return &utsName{Release: uts.Release}, nil
}
