package directory

import (
	"hash/fnv"
	"sort"

	"github.com/flashlightplugins/registry/pkg/registry"
)

// stableDailyShuffle orders plugins pseudo-randomly but identically for
// every request on the same UTC day, so category pages rotate daily
// without churning between page loads.
func stableDailyShuffle(plugins []*registry.Plugin, day string) {
	sort.SliceStable(plugins, func(i, j int) bool {
		return shuffleKey(day, plugins[i].Name) < shuffleKey(day, plugins[j].Name)
	})
}

func shuffleKey(day, name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(day))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return h.Sum64()
}
