package storage

import "dealercast/internal/ports"

// AssetStore re-exports the port so call-sites don't import internal/ports
// directly.
type AssetStore = ports.AssetStore
