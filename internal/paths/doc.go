// Provides platform-appropriate paths for the CLI.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The application name "stevedore" is used as the
// subdirectory under each base path. Paths inside built container images are
// not handled here; those are fixed constants owned by the environment
// package.
package paths
