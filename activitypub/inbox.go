package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// Error kinds surfaced to the inbox endpoint. The web layer maps them to
// the {"error": kind} JSON responses.
var (
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidType   = errors.New("invalid_type")
	ErrNotFound      = errors.New("not_found")
)

// Activity represents a generic ActivityPub activity envelope. Object is
// kept raw: depending on the type it is a bare URI string or a nested
// document.
type Activity struct {
	Context   interface{}     `json:"@context"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Object    json.RawMessage `json:"object"`
	Published string          `json:"published"`
}

// activityObject is the nested object of a compound activity.
type activityObject struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Actor        string `json:"actor"`
	Object       string `json:"object"`
	Content      string `json:"content"`
	Published    string `json:"published"`
	AttributedTo string `json:"attributedTo"`
}

// objectAsString returns the activity object when it is a plain URI string.
func (a *Activity) objectAsString() (string, bool) {
	var s string
	if err := json.Unmarshal(a.Object, &s); err != nil {
		return "", false
	}
	return s, true
}

func (a *Activity) nestedObject() (*activityObject, error) {
	var obj activityObject
	if err := json.Unmarshal(a.Object, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// ProcessInbox classifies and fully processes one inbound activity. Every
// POST is an independent unit of work: the activity's claimed actor is
// trusted as-is, no signature verification ties it to the request origin.
func (s *Service) ProcessInbox(ctx context.Context, body []byte) error {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return fmt.Errorf("%w: malformed activity: %v", ErrInvalidObject, err)
	}

	log.Printf("Inbox: Received %s from %s", activity.Type, activity.Actor)

	switch activity.Type {
	case "Follow":
		return s.handleFollow(ctx, body, &activity)
	case "Accept":
		return s.handleAccept(ctx, &activity)
	case "Undo":
		return s.handleUndo(ctx, &activity)
	case "Create":
		return s.handleCreate(ctx, &activity)
	default:
		// Like, Announce, Delete etc. are out of scope and acknowledged
		// without processing.
		log.Printf("Inbox: Ignoring unsupported activity type: %s", activity.Type)
		return nil
	}
}

// handleFollow confirms the follower eagerly and replies with a signed
// Accept wrapping the original Follow document.
func (s *Service) handleFollow(ctx context.Context, body []byte, activity *Activity) error {
	objectURI, ok := activity.objectAsString()
	if !ok || objectURI != s.selfURI() {
		return fmt.Errorf("%w: Follow object %q is not the local actor", ErrInvalidObject, objectURI)
	}

	self, err := s.SelfActor()
	if err != nil {
		return err
	}

	follower, err := s.ResolveActor(ctx, activity.Actor)
	if err != nil {
		return fmt.Errorf("failed to resolve follower %s: %w", activity.Actor, err)
	}

	if err := s.db.UpsertFollow(follower.Id, self.Id); err != nil {
		return fmt.Errorf("failed to store follow: %w", err)
	}

	if err := s.sendAccept(ctx, body, follower.InboxURI); err != nil {
		return fmt.Errorf("failed to send Accept: %w", err)
	}

	log.Printf("Inbox: Accepted follow from %s", follower.Handle())
	return nil
}

// handleAccept confirms an outbound follow: the pending edge becomes
// durable only now, never at send time.
func (s *Service) handleAccept(ctx context.Context, activity *Activity) error {
	obj, err := activity.nestedObject()
	if err != nil || obj.Type != "Follow" {
		return fmt.Errorf("%w: unsupported Accept object", ErrInvalidType)
	}

	err, accepted := s.db.ReadActorByURI(activity.Actor)
	if err != nil || accepted == nil {
		return fmt.Errorf("%w: Accept from unknown actor %s", ErrInvalidObject, activity.Actor)
	}

	self, err := s.SelfActor()
	if err != nil {
		return err
	}

	if err := s.db.UpsertFollow(self.Id, accepted.Id); err != nil {
		return fmt.Errorf("failed to store follow: %w", err)
	}

	log.Printf("Inbox: Follow of %s was accepted", accepted.Handle())
	return nil
}

// handleUndo removes the inbound follow edge. Undo of anything but a
// Follow is swallowed.
func (s *Service) handleUndo(ctx context.Context, activity *Activity) error {
	obj, err := activity.nestedObject()
	if err != nil || obj.Type != "Follow" {
		log.Printf("Inbox: Ignoring Undo of unsupported object")
		return nil
	}

	err, follower := s.db.ReadActorByURI(activity.Actor)
	if err != nil || follower == nil {
		return fmt.Errorf("%w: Undo from unknown actor %s", ErrInvalidObject, activity.Actor)
	}

	self, err := s.SelfActor()
	if err != nil {
		return err
	}

	// A missing edge is fine here: re-delivered Undos must not error.
	if err := s.db.DeleteFollow(follower.Id, self.Id); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	log.Printf("Inbox: Removed follow from %s", follower.Handle())
	return nil
}

// handleCreate persists an inbound Note as a post attributed to its
// (freshly resolved) author.
func (s *Service) handleCreate(ctx context.Context, activity *Activity) error {
	obj, err := activity.nestedObject()
	if err != nil || obj.Type != "Note" {
		return fmt.Errorf("%w: unsupported Create object", ErrInvalidType)
	}

	author, err := s.ResolveActor(ctx, activity.Actor)
	if err != nil {
		return fmt.Errorf("failed to resolve author %s: %w", activity.Actor, err)
	}

	postedAt := parsePublished(obj.Published, activity.Published)

	if err, _ := s.db.CreatePost(author.Id, obj.Content, postedAt); err != nil {
		return fmt.Errorf("failed to store post: %w", err)
	}

	log.Printf("Inbox: Stored post from %s", author.Handle())
	return nil
}

// parsePublished picks the object-level published timestamp, falling back
// to the activity-level one and finally to the receipt time.
func parsePublished(objectPublished string, activityPublished string) time.Time {
	for _, value := range []string{objectPublished, activityPublished} {
		if value == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return time.Now()
}
