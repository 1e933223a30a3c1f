package download

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Namer allocates collision-free file paths. Allocation is serialized so two
// in-flight workers can never compute the same "free" name: a candidate is
// checked against both names claimed earlier in the run and the filesystem
// under one lock.
type Namer struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewNamer builds an empty claim registry for one run.
func NewNamer() *Namer {
	return &Namer{claimed: make(map[string]struct{})}
}

// Claim returns an unused path for identifier and suffix under folder,
// appending _1, _2, ... until a free name is found, and records the result
// as claimed.
func (n *Namer) Claim(folder, identifier, suffix string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	path := filepath.Join(folder, fmt.Sprintf("%s_%s.jpg", identifier, suffix))
	for i := 1; n.taken(path); i++ {
		path = filepath.Join(folder, fmt.Sprintf("%s_%s_%d.jpg", identifier, suffix, i))
	}
	n.claimed[path] = struct{}{}
	return path
}

func (n *Namer) taken(path string) bool {
	if _, ok := n.claimed[path]; ok {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}
