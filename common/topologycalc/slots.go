package topologycalc

// slot is one row of a positional role allocation table.
type slot struct {
	match  func(pos int) bool
	assign func(node *OutputNode)
}

// allocate walks the nodes in order. The first primary slot matching a
// position assigns its base roles, then every matching overlay slot is
// applied on top of them.
func allocate(nodes []*OutputNode, primary []slot, overlays []slot) {
	for pos, node := range nodes {
		for _, s := range primary {
			if s.match(pos) {
				s.assign(node)
				break
			}
		}

		for _, s := range overlays {
			if s.match(pos) {
				s.assign(node)
			}
		}
	}
}

func before(n int) func(int) bool {
	return func(pos int) bool { return pos < n }
}

func at(n int) func(int) bool {
	return func(pos int) bool { return pos == n }
}

func always(int) bool { return true }
