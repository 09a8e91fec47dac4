// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioscribe

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names (spec.md §6). ioscribe defines its own names
// rather than reusing the original project's literal DARSHAN_* strings —
// spec.md pins semantics, not literal names (SPEC_FULL.md §8).
const (
	EnvDisable             = "IOSCRIBE_DISABLE"
	EnvInternalTiming      = "IOSCRIBE_INTERNAL_TIMING"
	EnvJobIDVarOverride    = "IOSCRIBE_JOBID_ENV"
	EnvLogPathOverride     = "IOSCRIBE_LOG_PATH"
	EnvLogFileOverride     = "IOSCRIBE_LOGFILE"
	EnvMemAlignOverride    = "IOSCRIBE_MEM_ALIGNMENT"
	EnvModMemOverride      = "IOSCRIBE_MODMEM_QUOTA_MIB"
	EnvLogHintsOverride    = "IOSCRIBE_LOG_HINTS"
	EnvExcludeDirsOverride = "IOSCRIBE_EXCLUDE_DIRS"
	EnvMmapLogPathOverride = "IOSCRIBE_MMAP_LOG_PATH"
)

const (
	defaultJobIDEnvVar    = "COBALT_JOBID"
	defaultModMemQuotaMiB = 4
	defaultMemAlignment   = 1
	nameArenaQuota        = 64 * 1024  // DARSHAN_NAME_RECORD_BUF_SIZE analogue
	exeMountsLen          = 4 * 1024   // DARSHAN_EXE_LEN analogue
	truncationMarker      = "<TRUNCATED>"
	libraryVersion        = "0.1.0"
)

// defaultPathExclusions mirrors darshan_path_exclusions in darshan-core.c:
// paths under these prefixes are not tracked unless overridden.
var defaultPathExclusions = []string{
	"/etc/", "/dev/", "/usr/", "/bin/", "/boot/",
	"/lib/", "/opt/", "/sbin/", "/sys/", "/proc/", "/var/",
}

// defaultPathInclusions mirrors darshan_path_inclusions: always tracked
// even when nested under an excluded root.
var defaultPathInclusions = []string{
	"/var/opt/cray/dws/mounts/",
}

// fsTypeExclusions mirrors darshan_get_exe_and_mounts's fs_exclusions: fs
// types skipped in the first (local) mount-table pass.
var fsTypeExclusions = map[string]bool{
	"tmpfs": true, "proc": true, "sysfs": true, "devpts": true,
	"binfmt_misc": true, "fusectl": true, "debugfs": true,
	"securityfs": true, "nfsd": true, "none": true,
	"rpc_pipefs": true, "hugetlbfs": true, "cgroup": true,
}

type config struct {
	disabled        bool
	internalTiming  bool
	jobIDEnvVar     string
	logPathOverride string
	logFileOverride string
	memAlignment    int
	modMemQuota     int
	logHints        string
	pathExclusions  []string
	pathInclusions  []string
	excludeAll      bool // IOSCRIBE_EXCLUDE_DIRS=none
}

func loadConfig() *config {
	c := &config{
		jobIDEnvVar:    defaultJobIDEnvVar,
		memAlignment:   defaultMemAlignment,
		modMemQuota:    defaultModMemQuotaMiB * 1024 * 1024,
		pathExclusions: defaultPathExclusions,
		pathInclusions: defaultPathInclusions,
	}

	if _, ok := os.LookupEnv(EnvDisable); ok {
		c.disabled = true
	}
	if _, ok := os.LookupEnv(EnvInternalTiming); ok {
		c.internalTiming = true
	}
	if v := os.Getenv(EnvJobIDVarOverride); v != "" {
		c.jobIDEnvVar = v
	}
	c.logPathOverride = os.Getenv(EnvLogPathOverride)
	c.logFileOverride = os.Getenv(EnvLogFileOverride)

	if v := os.Getenv(EnvMemAlignOverride); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.memAlignment = n
		}
		// malformed values are silently ignored (spec.md §7 ConfigError)
	}

	if v := os.Getenv(EnvModMemOverride); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.modMemQuota = int(f * 1024 * 1024)
		}
	}

	c.logHints = os.Getenv(EnvLogHintsOverride)

	if v, ok := os.LookupEnv(EnvExcludeDirsOverride); ok {
		if strings.EqualFold(strings.TrimSpace(v), "none") {
			c.excludeAll = true
			c.pathExclusions = nil
		} else {
			c.pathExclusions = strings.Split(v, ",")
		}
	}

	return c
}
