package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"minipub/domain"
	"minipub/util"
)

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"
const publicAudience = "https://www.w3.org/ns/activitystreams#Public"

// sendAccept replies to an inbound Follow with an Accept wrapping the
// original activity document verbatim.
func (s *Service) sendAccept(ctx context.Context, followBody []byte, inboxURI string) error {
	accept := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.newActivityIRI(),
		"type":     "Accept",
		"actor":    s.selfURI(),
		"object":   json.RawMessage(followBody),
	}

	return s.client.SendActivity(ctx, accept, inboxURI)
}

// Follow resolves a handle and sends a signed Follow request. No edge is
// written here: the relationship becomes durable only when the remote
// side's Accept arrives at the inbox.
func (s *Service) Follow(ctx context.Context, handle string) error {
	target, err := s.resolveTarget(ctx, handle)
	if err != nil {
		return err
	}

	follow := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.newActivityIRI(),
		"type":     "Follow",
		"actor":    s.selfURI(),
		"object":   target.ActorURI,
	}

	if err := s.client.SendActivity(ctx, follow, target.InboxURI); err != nil {
		return fmt.Errorf("failed to send Follow to %s: %w", target.Handle(), err)
	}

	log.Printf("Outbox: Sent Follow to %s", target.Handle())
	return nil
}

// Unfollow sends a fire-and-forget Undo(Follow) and removes the edge
// immediately, whatever the remote answers. Unfollowing someone not
// followed is a no-op.
func (s *Service) Unfollow(ctx context.Context, handle string) error {
	target, err := s.resolveTarget(ctx, handle)
	if err != nil {
		return err
	}

	undo := map[string]interface{}{
		"@context": activityStreamsContext,
		"id":       s.newActivityIRI(),
		"type":     "Undo",
		"actor":    s.selfURI(),
		"object": map[string]interface{}{
			"id":     s.newActivityIRI(),
			"type":   "Follow",
			"actor":  s.selfURI(),
			"object": target.ActorURI,
		},
	}

	if err := s.client.SendActivity(ctx, undo, target.InboxURI); err != nil {
		log.Printf("Outbox: Undo delivery to %s failed: %v", target.Handle(), err)
	}

	self, err := s.SelfActor()
	if err != nil {
		return err
	}

	return s.db.DeleteFollow(self.Id, target.Id)
}

func (s *Service) resolveTarget(ctx context.Context, handle string) (*domain.Actor, error) {
	actorURI, err := s.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	return s.ResolveActor(ctx, actorURI)
}

// PublishPost stores a local post and fans the Create(Note) activity out
// to every current follower, best-effort.
func (s *Service) PublishPost(ctx context.Context, content string) (*domain.Post, error) {
	self, err := s.SelfActor()
	if err != nil {
		return nil, err
	}

	err, post := s.db.CreatePost(self.Id, content, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}
	post.Author = self.ScreenName

	s.deliverCreate(ctx, self, post)
	return post, nil
}

// CreateActivity builds the Create(Note) document for a local post.
// Content is escaped here; the stored post stays raw.
func (s *Service) CreateActivity(post *domain.Post) map[string]interface{} {
	domainName := s.conf.Conf.Domain
	username := s.conf.Conf.Username
	published := post.PostedAt.UTC().Format(time.RFC3339)
	postURI := PostIRI(domainName, username, post.Id)

	return map[string]interface{}{
		"@context":  activityStreamsContext,
		"id":        fmt.Sprintf("%s/activity", postURI),
		"type":      "Create",
		"actor":     s.selfURI(),
		"published": published,
		"to":        []string{publicAudience},
		"cc":        []string{FollowersIRI(domainName, username)},
		"object": map[string]interface{}{
			"id":           postURI,
			"type":         "Note",
			"url":          postURI,
			"attributedTo": s.selfURI(),
			"content":      util.ContentToHTML(post.Content),
			"published":    published,
			"to":           []string{publicAudience},
			"cc":           []string{FollowersIRI(domainName, username)},
		},
	}
}

// deliverCreate delivers the Create activity to each follower inbox
// through a bounded pool with a per-delivery timeout. One failed inbox
// never aborts the rest, and nothing is queued for retry.
func (s *Service) deliverCreate(ctx context.Context, self *domain.Actor, post *domain.Post) {
	err, followers := s.db.ListFollowers(self.Id)
	if err != nil {
		log.Printf("Outbox: Failed to list followers: %v", err)
		return
	}
	if followers == nil || len(*followers) == 0 {
		log.Printf("Outbox: No followers to deliver to")
		return
	}

	create := s.CreateActivity(post)

	var g errgroup.Group
	g.SetLimit(deliveryConcurrency)
	for _, follower := range *followers {
		inboxURI := follower.InboxURI
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
			defer cancel()
			if err := s.client.SendActivity(dctx, create, inboxURI); err != nil {
				log.Printf("Outbox: Delivery to %s failed: %v", inboxURI, err)
			}
			return nil
		})
	}
	g.Wait()

	log.Printf("Outbox: Delivered post %s to %d followers", post.Id, len(*followers))
}
