// Package options parses the small set of global flags rca-scheduler
// accepts before any other argument, in the same "-name=value appearing
// before the first bare argument" style the teacher CLI uses for its own
// global options (-chdir, -version, and so on) ahead of a subcommand. This
// daemon has no subcommands, but the same parsing shape still applies: a
// run of -flag / -flag=value tokens, in the options.GetGlobalOptions(args)
// call at the top of main, ahead of anything else.
package options

import (
	"fmt"
	"strings"
)

// The global option names cmd/rca-scheduler recognizes in its flag set.
const (
	// ChDir switches the working directory before any relative config path
	// (host config, graph declaration) is resolved.
	ChDir = "chdir"
	// Help prints usage and exits.
	Help = "help"
	// Pedantic disables cmd/rca-scheduler's generic built-in evaluators
	// (registerDefaultEvaluators): every vertex must be covered by a
	// factory the deployment registered itself, and a gap is reported as
	// a startup error (validateEvaluatorCoverage) instead of silently
	// running against a generic default.
	Pedantic = "pedantic"
	// Version prints the build version and exits. Settable as -version,
	// -v, or --version.
	Version = "version"
)

// GetGlobalOptions parses the leading run of "-name" / "-name=value"
// arguments in args into a map, stopping at the first argument that isn't
// flag-shaped. -chdir requires a value; -v and --version are both
// normalized to the Version key so callers only need to check one name.
func GetGlobalOptions(args []string) (map[string]string, error) {
	options := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			// Global options must all precede the first non-flag argument.
			break
		}

		option := strings.SplitN(arg[1:], "=", 2)
		if option[0] == ChDir {
			if len(option) != 2 {
				return nil, fmt.Errorf(
					"invalid global option -%s: must include an equals sign followed by a value: -%s=value",
					option[0],
					option[0])
			}
		} else if option[0] == "v" || option[0] == "-version" {
			option[0] = Version
		}

		if len(option) != 2 {
			option = append(option, "")
		}
		options[option[0]] = option[1]
	}

	return options, nil
}

// IsGlobalOptionSet reports whether find appears among the leading run of
// global flags in args, without fully parsing them. main uses this to
// decide evaluator registration strictness (Pedantic).
func IsGlobalOptionSet(find string, args []string) bool {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return false
		}

		option := strings.SplitN(arg[1:], "=", 2)
		if option[0] == find {
			return true
		}
	}
	return false
}
