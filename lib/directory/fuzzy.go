// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var initScheme sync.Once

// fuzzyScore scores text against pattern with fzf's V2 algorithm.
// Both sides are lowercased so matching is case-insensitive. Zero
// means no match.
func fuzzyScore(text string, pattern []rune, slab *util.Slab) int {
	if len(pattern) == 0 {
		return 0
	}
	initScheme.Do(func() { algo.Init("default") })

	chars := util.ToChars([]byte(strings.ToLower(text)))
	lowered := []rune(strings.ToLower(string(pattern)))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, lowered, false, slab)
	if result.Start < 0 {
		return 0
	}
	return result.Score
}
