package strutils

import "strings"

// StrListContains looks for a string in a list of strings.
func StrListContains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}

// RemoveDuplicatesStable removes duplicate and empty elements from a slice of
// strings, preserving order (and case) of the original slice.
// In all cases, strings are compared after trimming whitespace
// If caseInsensitive, strings will be compared after ToLower()
func RemoveDuplicatesStable(items []string, caseInsensitive bool) []string {
	dups := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.TrimSpace(item)
		if caseInsensitive {
			key = strings.ToLower(key)
		}
		if key == "" || dups[key] {
			continue
		}
		dups[key] = true
		result = append(result, item)
	}
	return result
}

// NormalizeScope splits a space delimited scope string, drops empty and
// duplicate entries and joins the result back with single spaces.
func NormalizeScope(scope string) string {
	return strings.Join(RemoveDuplicatesStable(strings.Fields(scope), false), " ")
}
