package user

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Role represents the single authoritative role of a caller.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// SystemID identifies the in-process scheduler when it acts on the core.
var SystemID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Actor is the caller identity resolved once by the auth collaborator and
// passed explicitly to every core operation.
type Actor struct {
	UserID          uuid.UUID
	Role            Role
	ProfileComplete bool
}

// System returns the actor used by the deadline sweep.
func System() Actor {
	return Actor{UserID: SystemID, Role: RoleAdmin, ProfileComplete: true}
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsBuyer() bool  { return a.Role == RoleBuyer }
func (a Actor) IsSeller() bool { return a.Role == RoleSeller }

// ActorString is the audit representation of the actor.
func (a Actor) ActorString() string {
	return strings.ToLower(string(a.Role)) + ":" + a.UserID.String()
}

// ParseRole normalizes a role claim.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if err := ValidateRole(role); err != nil {
		return "", err
	}
	return role, nil
}

func ValidateRole(role Role) error {
	switch role {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return nil
	default:
		return errors.New("invalid role")
	}
}
