package web

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"minipub/activitypub"
)

// HandleFollowAction processes the timeline follow/unfollow form. The target
// is a fediverse handle like @user@example.org.
func HandleFollowAction(c *gin.Context, ap *activitypub.Service) {
	handle := strings.TrimSpace(c.PostForm("targetUser"))
	action := c.PostForm("action")

	if handle == "" {
		c.HTML(400, "error.html", gin.H{"Title": "Error", "Error": "No handle given"})
		return
	}

	var err error
	switch action {
	case "follow":
		err = ap.Follow(c.Request.Context(), handle)
	case "unfollow":
		err = ap.Unfollow(c.Request.Context(), handle)
	default:
		c.HTML(400, "error.html", gin.H{"Title": "Error", "Error": "Unknown action"})
		return
	}

	if err != nil {
		log.Printf("Outbox: %s %s failed: %v", action, handle, err)
		c.HTML(502, "error.html", gin.H{"Title": "Error", "Error": "Could not reach " + handle})
		return
	}

	c.Redirect(303, "/timeline")
}

// HandlePostAction publishes a new post and fans it out to followers.
func HandlePostAction(c *gin.Context, ap *activitypub.Service) {
	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.HTML(400, "error.html", gin.H{"Title": "Error", "Error": "Post is empty"})
		return
	}

	if _, err := ap.PublishPost(c.Request.Context(), content); err != nil {
		log.Printf("Outbox: publish failed: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Could not publish post"})
		return
	}

	c.Redirect(303, "/timeline")
}
