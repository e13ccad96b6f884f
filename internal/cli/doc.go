// Parses flags and dispatches subcommands for the stevedore CLI.
//
// The CLI accepts the following flags:
//
//	-q, --quiet   Suppress informational output.
//	-d, --debug   Enable debug output.
//
// Subcommands:
//
//	build    Package a flow definition into a container image.
//	run      Run a flow from a serialized environment file. Used as the
//	         container entry command inside built images.
//	version  Show version information.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level before the
// subcommand runs.
package cli
