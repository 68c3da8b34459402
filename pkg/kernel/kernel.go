/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package kernel

import (
	"fmt"
)

// VersionInfo holds known kernel version/major/minor numbers.
type VersionInfo struct {
	Kernel int // Version of the Kernel (i.e. 4.1.2-generic -> 4)
	Major  int // Major part of the kernel version (i.e. 4.1.2-generic -> 1)
	Minor  int // Minor part of the kernel version (i.e. 4.1.2-generic -> 2)
}

func (k *VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d", k.Kernel, k.Major, k.Minor)
}

// ParseRelease parses a string and creates a VersionInfo based on it.
func ParseRelease(release string) (*VersionInfo, error) {
	var version = VersionInfo{}

	// Ignore error from Sscanf to allow an empty or partially invalid
	// Minor and Flavor. Instead, just validate that Kernel is >= 0.
	_, _ = fmt.Sscanf(release, "%d.%d.%d", &version.Kernel, &version.Major, &version.Minor)
	if version.Kernel < 0 {
		return nil, fmt.Errorf("kernel version %s not valid", release)
	}

	return &version, nil
}

// CompareKernelVersion compares two kernel.VersionInfo structs.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func CompareKernelVersion(a, b VersionInfo) int {
	if a.Kernel < b.Kernel {
		return -1
	}
	if a.Kernel > b.Kernel {
		return 1
	}

	if a.Major < b.Major {
		return -1
	}
	if a.Major > b.Major {
		return 1
	}

	if a.Minor < b.Minor {
		return -1
	}
	if a.Minor > b.Minor {
		return 1
	}

	return 0
}
