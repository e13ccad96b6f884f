package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "stevedore"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for persisted environment descriptors.
//
//	Linux:   ~/.local/share/stevedore
//	macOS:   ~/Library/Application Support/stevedore
func Data() string {
	return filepath.Join(xdg.DataHome, appName)
}

// Path to the directory for user configuration.
//
//	Linux:   ~/.config/stevedore
//	macOS:   ~/Library/Application Support/stevedore
func Config() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// Default path for a built environment descriptor saved by the CLI.
//
// The descriptor for a flow named "etl" lands at, e.g.,
// ~/.local/share/stevedore/etl.json on Linux.
func Descriptor(flowName string) string {
	return filepath.Join(Data(), flowName+".json")
}
