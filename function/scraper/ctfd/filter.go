package ctfd

import "strings"

type FilterFunc func(chall Challenge) bool

// Filter keeps the challenges every f accepts.
func (ac Challenges) Filter(f ...FilterFunc) Challenges {
	if len(f) == 0 {
		return ac
	}
	var res Challenges
outer:
	for _, v := range ac {
		for _, keep := range f {
			if !keep(v) {
				continue outer
			}
		}
		res = append(res, v)
	}
	return res
}

func ByCategory(category string) FilterFunc {
	return func(chall Challenge) bool {
		return strings.EqualFold(chall.Category(), category)
	}
}

func OnlySolved() FilterFunc {
	return func(chall Challenge) bool {
		return chall.SolvedByMe()
	}
}
