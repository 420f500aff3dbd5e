package mirror

import (
	"sync"

	"github.com/lukemcguire/sitecapture/asset"
)

type cancelKey struct {
	category asset.Category
	url      string
}

// AssetCancels records transfers cancelled one at a time while a run is in
// progress. Its Canceled method is meant for Config.AssetCanceled. The zero
// value is ready to use and safe for concurrent use.
type AssetCancels struct {
	m sync.Map
}

// Cancel marks the transfer of rawURL in category as cancelled.
func (c *AssetCancels) Cancel(category asset.Category, rawURL string) {
	c.m.Store(cancelKey{category: category, url: rawURL}, struct{}{})
}

// Canceled reports whether Cancel was called for the transfer.
func (c *AssetCancels) Canceled(category asset.Category, rawURL string) bool {
	_, ok := c.m.Load(cancelKey{category: category, url: rawURL})
	return ok
}
