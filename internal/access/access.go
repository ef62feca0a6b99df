// Package access decides whether a role may perform an action on an entity.
// It is a pure function of its inputs and holds no session state.
//
// Rules:
//
//	ADMIN  any action on any entity
//	USER   read    grants, application_deadlines; own users, application, application_documents
//	       create  own application, application_documents
//	       update  own users, application, application_documents
//	       delete  own users, application, application_documents
package access

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the caller's role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Action is a CRUD verb.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entity is a protected resource kind.
type Entity string

const (
	EntityUsers                Entity = "users"
	EntityResearchFields       Entity = "research_fields"
	EntityApplication          Entity = "application"
	EntityApplicationDocuments Entity = "application_documents"
	EntityApplicationDeadlines Entity = "application_deadlines"
	EntityGrants               Entity = "grants"
)

// ErrForbidden is wrapped by every denial returned from Require.
var ErrForbidden = errors.New("forbidden")

// ParseRole accepts "user"/"admin" in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// userOwned lists, per action, the entities a USER may touch when they own
// the resource.
var userOwned = map[Action][]Entity{
	ActionRead:   {EntityUsers, EntityApplication, EntityApplicationDocuments},
	ActionCreate: {EntityApplication, EntityApplicationDocuments},
	ActionUpdate: {EntityUsers, EntityApplication, EntityApplicationDocuments},
	ActionDelete: {EntityUsers, EntityApplication, EntityApplicationDocuments},
}

// userPublic lists, per action, the entities any USER may touch.
var userPublic = map[Action][]Entity{
	ActionRead: {EntityApplicationDeadlines, EntityGrants},
}

// Authorize reports whether role may perform action on entity. ownerID is
// the owner of the targeted resource; ownership checks require both IDs to
// be non-empty and equal.
func Authorize(role Role, action Action, entity Entity, actorID, ownerID string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		if contains(userPublic[action], entity) {
			return true
		}
		if contains(userOwned[action], entity) {
			return actorID != "" && actorID == ownerID
		}
	}
	return false
}

// Require is Authorize returning an error that wraps ErrForbidden.
func Require(role Role, action Action, entity Entity, actorID, ownerID string) error {
	if Authorize(role, action, entity, actorID, ownerID) {
		return nil
	}
	return fmt.Errorf("%w: %s %q cannot %s %s", ErrForbidden, role, actorID, action, entity)
}

func contains(list []Entity, e Entity) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}
