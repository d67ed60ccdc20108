// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" suggestion.
const maxSuggestDistance = 3

// suggestCommand returns the subcommand name closest to unknown, or ""
// when none is within maxSuggestDistance.
func suggestCommand(unknown string, commands []*Command) string {
	names := make([]string, len(commands))
	for index, command := range commands {
		names[index] = command.Name
	}
	return closest(unknown, names)
}

// suggestFlag finds the first flag in args that flagSet does not
// define and returns the closest defined flag, with its dash prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(flag *pflag.Flag) {
		defined = append(defined, flag.Name)
	})

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flagSet.Lookup(name) != nil || (len(name) == 1 && flagSet.ShorthandLookup(name) != nil) {
			continue
		}
		if best := closest(name, defined); best != "" {
			return "--" + best
		}
		return ""
	}
	return ""
}

func closest(unknown string, candidates []string) string {
	best := ""
	bestDistance := maxSuggestDistance + 1
	for _, candidate := range candidates {
		if distance := levenshtein(unknown, candidate); distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best
}

// levenshtein returns the edit distance between a and b, keeping one
// row of the distance matrix.
func levenshtein(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return len(b)
	}

	previous := make([]int, len(a)+1)
	current := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}
	for j := 1; j <= len(b); j++ {
		current[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(a)]
}
