//go:build debug

package session

import (
	"fmt"

	"github.com/zeusync/cellsync/internal/core/models"
)

func assertUniqueConnection(conn models.ConnectionID, existing, incoming models.EntityID) {
	panic(fmt.Sprintf("session: connection %s already bound to %s, rebinding to %s", conn, existing, incoming))
}
