//go:build !debug

package session

import "github.com/zeusync/cellsync/internal/core/models"

// assertUniqueConnection is a no-op outside debug builds; the newest binding
// wins.
func assertUniqueConnection(models.ConnectionID, models.EntityID, models.EntityID) {}
