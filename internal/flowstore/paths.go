// Package flowstore manages the on-disk domain directory: creating,
// opening, listing and destroying flow directories, and the advisory file
// lock that enforces one writer per flow.
package flowstore

import (
	"path/filepath"

	"github.com/google/uuid"
)

const (
	descriptorFileName = "descriptor.json"
	optionsFileName    = "options.json"
	dataFileName       = "data"
	lockFileName       = "writer.lock"

	tempDirPrefix = ".mxl-tmp-"
)

// FlowDir returns the directory a flow's files live under.
func FlowDir(domain string, id uuid.UUID) string {
	return filepath.Join(domain, id.String())
}

// DescriptorPath returns the path to a flow's original descriptor JSON.
func DescriptorPath(domain string, id uuid.UUID) string {
	return filepath.Join(FlowDir(domain, id), descriptorFileName)
}

// OptionsPath returns the path to a flow's effective options JSON.
func OptionsPath(domain string, id uuid.UUID) string {
	return filepath.Join(FlowDir(domain, id), optionsFileName)
}

// DataPath returns the path to a flow's memory-mapped region file.
func DataPath(domain string, id uuid.UUID) string {
	return filepath.Join(FlowDir(domain, id), dataFileName)
}

// LockPath returns the path to a flow's writer lock sentinel.
func LockPath(domain string, id uuid.UUID) string {
	return filepath.Join(FlowDir(domain, id), lockFileName)
}
