package registry

// opProps encodes the (remove, block, iterate) flags the fetch/find verb
// family carries in its name, mirroring the original server's
// GET_OP_PROPERTIES table.
type opProps struct {
	remove  bool
	block   bool
	iterate bool
}

var getOps = map[string]opProps{
	"fetch":     {remove: true, block: true, iterate: false},
	"fetchTry":  {remove: true, block: false, iterate: false},
	"find":      {remove: false, block: true, iterate: false},
	"findTry":   {remove: false, block: false, iterate: false},
	"ifetch":    {remove: true, block: true, iterate: true},
	"ifetchTry": {remove: true, block: false, iterate: true},
	"ifind":     {remove: false, block: true, iterate: true},
	"ifindTry":  {remove: false, block: false, iterate: true},
}

// OpProperties reports the remove/block/iterate flags for one of the eight
// fetch/find verbs, and whether op was recognized at all.
func OpProperties(op string) (remove, block, iterate, ok bool) {
	p, ok := getOps[op]
	return p.remove, p.block, p.iterate, ok
}
