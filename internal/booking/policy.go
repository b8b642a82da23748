package booking

import (
	"github.com/google/uuid"

	"github.com/parkease/parkease-api/internal/models"
)

// Requester identifies the authenticated caller of an operation.
type Requester struct {
	ID   uuid.UUID
	Role string
}

func (r Requester) IsAdmin() bool {
	return r.Role == models.RoleAdmin
}

// CanAccess is the single ownership check used by every operation:
// a requester may touch a resource it owns, and an admin may touch
// anything.
func CanAccess(r Requester, ownerID uuid.UUID) bool {
	return r.IsAdmin() || r.ID == ownerID
}
