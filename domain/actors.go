package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actor represents a federation participant. Exactly one row is the local
// self actor (matching the configured domain and username); every other row
// is a cached remote actor, refreshed on each resolution.
type Actor struct {
	Id           uuid.UUID
	ScreenName   string
	Domain       string
	DisplayName  string
	IconURL      string
	PublicKeyPem string
	ActorURI     string
	InboxURI     string
	CreatedAt    time.Time
}

// Handle returns the @name@domain form of the actor.
func (a *Actor) Handle() string {
	return fmt.Sprintf("@%s@%s", a.ScreenName, a.Domain)
}

func (a *Actor) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tHandle: %s \n\tActorURI: %s", a.Id, a.Handle(), a.ActorURI)
}

// FollowEdge is a directed "follower follows following" relationship,
// unique per ordered pair.
type FollowEdge struct {
	FollowerId  uuid.UUID
	FollowingId uuid.UUID
	CreatedAt   time.Time
}
