package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func marshalActivity(t *testing.T, activity map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(activity)
	if err != nil {
		t.Fatalf("Failed to marshal activity: %v", err)
	}
	return body
}

func TestProcessInboxMalformed(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.ProcessInbox(context.Background(), []byte("{not json"))
	if !errors.Is(err, ErrInvalidObject) {
		t.Errorf("Expected ErrInvalidObject, got %v", err)
	}
}

func TestProcessInboxUnsupportedType(t *testing.T) {
	svc, _ := newTestService(t)

	body := marshalActivity(t, map[string]interface{}{
		"type":   "Like",
		"actor":  "https://remote.social/users/bob",
		"object": "https://example.com/users/alice/posts/1",
	})

	// Unknown types are acknowledged, not rejected.
	if err := svc.ProcessInbox(context.Background(), body); err != nil {
		t.Errorf("Unsupported type should be ignored, got %v", err)
	}
}

func TestHandleFollow(t *testing.T) {
	svc, database := newTestService(t)
	remote := newRemoteActor(t, "bob")

	followID := "https://remote.social/activities/1"
	body := marshalActivity(t, map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       followID,
		"type":     "Follow",
		"actor":    remote.actorURI(),
		"object":   ActorIRI(testDomain, testUsername),
	})

	if err := svc.ProcessInbox(context.Background(), body); err != nil {
		t.Fatalf("Follow processing failed: %v", err)
	}

	// The follower edge exists.
	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	err, count := database.CountFollowers(self.Id)
	if err != nil || count != 1 {
		t.Errorf("Expected 1 follower, got %d (%v)", count, err)
	}

	// A signed Accept wrapping the original Follow went back to the inbox.
	if remote.inboxCount() != 1 {
		t.Fatalf("Expected 1 Accept delivery, got %d", remote.inboxCount())
	}
	accept := remote.lastActivity(t)
	if accept["type"] != "Accept" {
		t.Errorf("Expected Accept, got %v", accept["type"])
	}
	object, ok := accept["object"].(map[string]interface{})
	if !ok {
		t.Fatalf("Accept object should be the original Follow document, got %T", accept["object"])
	}
	if object["id"] != followID || object["type"] != "Follow" {
		t.Errorf("Accept should wrap the original Follow, got %v", object)
	}

	req := remote.lastRequest(t)
	if req.Header.Get("Signature") == "" {
		t.Error("Accept delivery should be signed")
	}
	if req.Header.Get("Digest") == "" {
		t.Error("Accept delivery should carry a digest")
	}
}

func TestHandleFollowRedelivery(t *testing.T) {
	svc, database := newTestService(t)
	remote := newRemoteActor(t, "bob")

	body := marshalActivity(t, map[string]interface{}{
		"type":   "Follow",
		"actor":  remote.actorURI(),
		"object": ActorIRI(testDomain, testUsername),
	})

	for i := 0; i < 2; i++ {
		if err := svc.ProcessInbox(context.Background(), body); err != nil {
			t.Fatalf("Follow delivery %d failed: %v", i, err)
		}
	}

	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	err, count := database.CountFollowers(self.Id)
	if err != nil || count != 1 {
		t.Errorf("Re-delivered Follow should not duplicate the edge, got %d followers", count)
	}

	// Each delivery still gets its Accept.
	if remote.inboxCount() != 2 {
		t.Errorf("Expected 2 Accept deliveries, got %d", remote.inboxCount())
	}
}

func TestHandleFollowWrongObject(t *testing.T) {
	svc, _ := newTestService(t)
	remote := newRemoteActor(t, "bob")

	body := marshalActivity(t, map[string]interface{}{
		"type":   "Follow",
		"actor":  remote.actorURI(),
		"object": "https://example.com/users/somebodyelse",
	})

	err := svc.ProcessInbox(context.Background(), body)
	if !errors.Is(err, ErrInvalidObject) {
		t.Errorf("Follow of a foreign actor should be ErrInvalidObject, got %v", err)
	}
	if remote.inboxCount() != 0 {
		t.Error("No Accept should be sent for a rejected Follow")
	}
}

func TestHandleAccept(t *testing.T) {
	svc, database := newTestService(t)
	remote := newRemoteActor(t, "bob")

	// Outbound follow first: the edge must not exist before the Accept.
	if err := svc.Follow(context.Background(), remote.handle()); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	err, count := database.CountFollowing(self.Id)
	if err != nil || count != 0 {
		t.Fatalf("No following edge should exist before the Accept, got %d", count)
	}

	accept := marshalActivity(t, map[string]interface{}{
		"type":  "Accept",
		"actor": remote.actorURI(),
		"object": map[string]interface{}{
			"type":   "Follow",
			"actor":  ActorIRI(testDomain, testUsername),
			"object": remote.actorURI(),
		},
	})
	if err := svc.ProcessInbox(context.Background(), accept); err != nil {
		t.Fatalf("Accept processing failed: %v", err)
	}

	err, count = database.CountFollowing(self.Id)
	if err != nil || count != 1 {
		t.Errorf("Expected 1 following edge after Accept, got %d (%v)", count, err)
	}
}

func TestHandleAcceptUnknownActor(t *testing.T) {
	svc, _ := newTestService(t)

	accept := marshalActivity(t, map[string]interface{}{
		"type":  "Accept",
		"actor": "https://remote.social/users/stranger",
		"object": map[string]interface{}{
			"type": "Follow",
		},
	})

	err := svc.ProcessInbox(context.Background(), accept)
	if !errors.Is(err, ErrInvalidObject) {
		t.Errorf("Accept from unknown actor should be ErrInvalidObject, got %v", err)
	}
}

func TestHandleAcceptWrongObjectType(t *testing.T) {
	svc, _ := newTestService(t)

	accept := marshalActivity(t, map[string]interface{}{
		"type":  "Accept",
		"actor": "https://remote.social/users/bob",
		"object": map[string]interface{}{
			"type": "Like",
		},
	})

	err := svc.ProcessInbox(context.Background(), accept)
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("Accept of a non-Follow should be ErrInvalidType, got %v", err)
	}
}

func TestHandleUndoFollow(t *testing.T) {
	svc, database := newTestService(t)
	remote := newRemoteActor(t, "bob")

	follow := marshalActivity(t, map[string]interface{}{
		"type":   "Follow",
		"actor":  remote.actorURI(),
		"object": ActorIRI(testDomain, testUsername),
	})
	if err := svc.ProcessInbox(context.Background(), follow); err != nil {
		t.Fatalf("Follow processing failed: %v", err)
	}

	undo := marshalActivity(t, map[string]interface{}{
		"type":  "Undo",
		"actor": remote.actorURI(),
		"object": map[string]interface{}{
			"type":   "Follow",
			"actor":  remote.actorURI(),
			"object": ActorIRI(testDomain, testUsername),
		},
	})
	if err := svc.ProcessInbox(context.Background(), undo); err != nil {
		t.Fatalf("Undo processing failed: %v", err)
	}

	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	err, count := database.CountFollowers(self.Id)
	if err != nil || count != 0 {
		t.Errorf("Expected 0 followers after Undo, got %d", count)
	}

	// A second Undo for the now-missing edge is still fine.
	if err := svc.ProcessInbox(context.Background(), undo); err != nil {
		t.Errorf("Re-delivered Undo should be a no-op, got %v", err)
	}
}

func TestHandleUndoNonFollow(t *testing.T) {
	svc, _ := newTestService(t)

	undo := marshalActivity(t, map[string]interface{}{
		"type":  "Undo",
		"actor": "https://remote.social/users/bob",
		"object": map[string]interface{}{
			"type": "Like",
		},
	})

	if err := svc.ProcessInbox(context.Background(), undo); err != nil {
		t.Errorf("Undo of a non-Follow should be swallowed, got %v", err)
	}
}

func TestHandleCreateNote(t *testing.T) {
	svc, database := newTestService(t)
	remote := newRemoteActor(t, "bob")

	published := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	create := marshalActivity(t, map[string]interface{}{
		"type":  "Create",
		"actor": remote.actorURI(),
		"object": map[string]interface{}{
			"id":           remote.actorURI() + "/posts/1",
			"type":         "Note",
			"content":      "hello fediverse",
			"published":    published.Format(time.RFC3339),
			"attributedTo": remote.actorURI(),
		},
	})

	if err := svc.ProcessInbox(context.Background(), create); err != nil {
		t.Fatalf("Create processing failed: %v", err)
	}

	err, author := database.ReadActorByURI(remote.actorURI())
	if err != nil || author == nil {
		t.Fatalf("Note author should have been resolved and cached: %v", err)
	}

	err, posts := database.ReadPostsByAuthor(author.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(*posts) != 1 {
		t.Fatalf("Expected 1 stored post, got %d", len(*posts))
	}
	post := (*posts)[0]
	if post.Content != "hello fediverse" {
		t.Errorf("Expected stored content, got %s", post.Content)
	}
	if !post.PostedAt.Equal(published) {
		t.Errorf("Expected published time %v, got %v", published, post.PostedAt)
	}
}

func TestHandleCreateNonNote(t *testing.T) {
	svc, _ := newTestService(t)

	create := marshalActivity(t, map[string]interface{}{
		"type":  "Create",
		"actor": "https://remote.social/users/bob",
		"object": map[string]interface{}{
			"type": "Video",
		},
	})

	err := svc.ProcessInbox(context.Background(), create)
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("Create of a non-Note should be ErrInvalidType, got %v", err)
	}
}

func TestParsePublished(t *testing.T) {
	objectTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	activityTime := time.Date(2024, 6, 7, 8, 9, 10, 0, time.UTC)

	tests := []struct {
		name     string
		object   string
		activity string
		want     time.Time
	}{
		{"object wins", objectTime.Format(time.RFC3339), activityTime.Format(time.RFC3339), objectTime},
		{"activity fallback", "", activityTime.Format(time.RFC3339), activityTime},
		{"bad object falls through", "yesterday", activityTime.Format(time.RFC3339), activityTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePublished(tt.object, tt.activity)
			if !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("receipt time fallback", func(t *testing.T) {
		before := time.Now()
		got := parsePublished("", "")
		if got.Before(before) || got.After(time.Now()) {
			t.Errorf("Expected receipt time, got %v", got)
		}
	})
}
