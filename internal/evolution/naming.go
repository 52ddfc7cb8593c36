package evolution

import "fmt"

// namer hands out child names of the form <prefix>-<generation letter><n>.
// n counts spawns across the whole run and skips names already reserved, so
// a name is never handed out twice in one run.
type namer struct {
	prefix string
	count  int
	used   map[string]struct{}
}

// reserve marks name as taken, e.g. a genesis agent.
func (n *namer) reserve(name string) {
	if n.used == nil {
		n.used = make(map[string]struct{})
	}
	n.used[name] = struct{}{}
}

func (n *namer) next(generation int) string {
	for {
		n.count++
		name := fmt.Sprintf("%s-%c%d", n.prefix, generationLetter(generation), n.count)
		if _, taken := n.used[name]; !taken {
			n.reserve(name)
			return name
		}
	}
}

// generationLetter maps generation 2 to 'A', 3 to 'B' and wraps after 'Z'.
func generationLetter(generation int) rune {
	idx := generation - 2
	if idx < 0 {
		idx = 0
	}
	return rune('A' + idx%26)
}
