// In file: internal/knowledge/selection.go
package knowledge

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSelection turns a page selection typed by the user into zero-based indexes into a
// list of n pages. It accepts "all", "none" or an empty string, and comma-separated
// 1-based numbers and ranges such as "1,3,5" or "1-5". Numbers outside the list are
// skipped, a range is only used when both ends are in the list, and duplicates are
// dropped. Anything that is not a number is an error.
func ParseSelection(selection string, n int) ([]int, error) {
	sel := strings.ToLower(strings.TrimSpace(selection))
	switch sel {
	case "", "none":
		return nil, nil
	case "all":
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var picked []int
	seen := make(map[int]bool)
	add := func(i int) {
		if !seen[i] {
			seen[i] = true
			picked = append(picked, i)
		}
	}

	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if from, to, isRange := strings.Cut(part, "-"); isRange {
			start, err := pageNumber(from)
			if err != nil {
				return nil, err
			}
			end, err := pageNumber(to)
			if err != nil {
				return nil, err
			}
			if start < 1 || start > n || end < 1 || end > n {
				continue
			}
			for i := start; i <= end; i++ {
				add(i - 1)
			}
			continue
		}
		num, err := pageNumber(part)
		if err != nil {
			return nil, err
		}
		if num >= 1 && num <= n {
			add(num - 1)
		}
	}
	return picked, nil
}

func pageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", strings.TrimSpace(s))
	}
	return n, nil
}
