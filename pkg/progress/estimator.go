// Package progress estimates build progress from packaging-tool output.
//
// PyInstaller has no machine-readable progress channel, so this is a
// heuristic: ordered substring rules over each output line, first match
// wins. The completion rule is checked first so a terminal line that also
// mentions a stage keyword (e.g. "Building EXE completed successfully.")
// still reports 100 instead of being masked by the stage rule.
package progress

import "strings"

// rule maps a substring to a coarse percentage.
type rule struct {
	substr        string
	percent       int
	caseSensitive bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{"completed successfully", 100, false},
	{"Analyzing", 30, true},
	{"Collecting", 50, true},
	{"Building", 70, true},
}

// Estimate classifies one line of tool output into a percentage in
// [0,100]. The second return is false when no rule matches; such lines
// carry no progress information.
func Estimate(line string) (int, bool) {
	for _, r := range rules {
		if r.caseSensitive {
			if strings.Contains(line, r.substr) {
				return r.percent, true
			}
			continue
		}
		if strings.Contains(strings.ToLower(line), r.substr) {
			return r.percent, true
		}
	}
	return 0, false
}
