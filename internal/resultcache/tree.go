package resultcache

import (
	"sync"

	"github.com/buildpal-oss/buildpal/internal/fingerprint"
	"github.com/buildpal-oss/buildpal/internal/intern"
	"github.com/buildpal-oss/buildpal/internal/macro"
)

// treeKey identifies one decision tree: a (file identity, search-path
// fingerprint) pair, spec §3's "Per (file_id, search_path_id) there is
// a decision tree."
type treeKey struct {
	fileID       fingerprint.FileID
	searchPathID fingerprint.SearchPathID
}

// treeNode is one node of a decision tree. An unlabeled node with no
// entry is an empty leaf-in-waiting; a labeled node dispatches on the
// value its macroName holds in the current Macro State; a node with a
// non-nil entry is a populated leaf.
type treeNode struct {
	labeled   bool
	macroName intern.MacroName
	children  map[intern.MacroValue]*treeNode
	entry     *CacheEntry
}

// decisionTree is the tree for one treeKey, guarded by its own
// RWMutex — spec §5: "Result Cache tree ... shared mutex. Readers
// descend trees under shared mode; inserts upgrade."
type decisionTree struct {
	mu   sync.RWMutex
	root *treeNode
}

func newDecisionTree() *decisionTree {
	return &decisionTree{root: &treeNode{}}
}

// find descends the tree under a shared lock, querying state for each
// labeled node's macro, spec §4.4.1 step 2. Returns nil on any missing
// branch.
func (t *decisionTree) find(state *macro.State) *CacheEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	for {
		if n.entry != nil {
			return n.entry
		}
		if !n.labeled {
			return nil
		}
		value := state.Get(n.macroName)
		child, ok := n.children[value]
		if !ok {
			return nil
		}
		n = child
	}
}

// getOrInsert walks the tree along used (in its given, discovery
// order), building missing nodes and labeling unlabeled ones as it
// goes, spec §4.4.2 step 1. If the resulting leaf already holds an
// entry — a concurrent peer won the race — that entry is returned with
// inserted=false; otherwise make() is called to build a fresh entry,
// which is installed and returned with inserted=true.
func (t *decisionTree) getOrInsert(reg *intern.Registry, used []macro.Pair, make_ func() *CacheEntry) (entry *CacheEntry, inserted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root
	for _, pair := range used {
		if n.entry != nil {
			return n.entry, false
		}
		if !n.labeled {
			n.labeled = true
			n.macroName = pair.Name
			n.children = make(map[intern.MacroValue]*treeNode, 2)
		}
		value := pair.Value
		if !n.macroName.Equal(pair.Name) {
			value = lookupValue(used, n.macroName, reg)
		}
		child, ok := n.children[value]
		if !ok {
			child = &treeNode{}
			n.children[value] = child
		}
		n = child
	}
	if n.entry != nil {
		return n.entry, false
	}
	e := make_()
	e.ownerTree = t
	e.leaf = n
	n.entry = e
	return e, true
}

// lookupValue finds name's value among used, falling back to the
// undefined sentinel if name wasn't among this scan's observed reads.
// Only reached if a tree's established node order ever disagrees with
// a later insertion's discovery order; spec's tree-shape invariant
// assumes this never happens in practice, but it keeps a divergent
// insertion correct instead of panicking.
func lookupValue(used []macro.Pair, name intern.MacroName, reg *intern.Registry) intern.MacroValue {
	for _, pair := range used {
		if pair.Name.Equal(name) {
			return pair.Value
		}
	}
	return reg.Undefined()
}
