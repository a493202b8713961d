package web

import (
	"github.com/gin-gonic/gin"

	"minipub/activitypub"
	"minipub/db"
	"minipub/domain"
	"minipub/util"
)

// HandleFollowers serves the followers OrderedCollection: the actor ids of
// everyone currently following the local actor.
func HandleFollowers(c *gin.Context, conf *util.AppConfig, database *db.DB, ap *activitypub.Service) {
	self, ok := localActor(c, conf, database)
	if !ok {
		return
	}

	err, followers := database.ListFollowers(self.Id)
	if err != nil {
		InternalError(c)
		return
	}

	renderActorCollection(c, activitypub.FollowersIRI(conf.Conf.Domain, conf.Conf.Username), followers)
}

// HandleFollowing serves the following OrderedCollection.
func HandleFollowing(c *gin.Context, conf *util.AppConfig, database *db.DB, ap *activitypub.Service) {
	self, ok := localActor(c, conf, database)
	if !ok {
		return
	}

	err, following := database.ListFollowing(self.Id)
	if err != nil {
		InternalError(c)
		return
	}

	renderActorCollection(c, activitypub.FollowingIRI(conf.Conf.Domain, conf.Conf.Username), following)
}

// HandleOutbox serves the outbox OrderedCollection: the local actor's
// Create(Note) activities, newest first.
func HandleOutbox(c *gin.Context, conf *util.AppConfig, database *db.DB, ap *activitypub.Service) {
	self, ok := localActor(c, conf, database)
	if !ok {
		return
	}

	err, posts := database.ReadPostsByAuthor(self.Id)
	if err != nil {
		InternalError(c)
		return
	}

	items := make([]interface{}, 0)
	if posts != nil {
		for i := range *posts {
			items = append(items, ap.CreateActivity(&(*posts)[i]))
		}
	}

	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(200, gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           activitypub.OutboxIRI(conf.Conf.Domain, conf.Conf.Username),
		"type":         "OrderedCollection",
		"totalItems":   len(items),
		"orderedItems": items,
	})
}

func localActor(c *gin.Context, conf *util.AppConfig, database *db.DB) (*domain.Actor, bool) {
	if c.Param("name") != conf.Conf.Username {
		NotFound(c)
		return nil, false
	}

	err, self := database.ReadActorByName(conf.Conf.Domain, conf.Conf.Username)
	if err != nil {
		NotFound(c)
		return nil, false
	}
	return self, true
}

func renderActorCollection(c *gin.Context, collectionIRI string, actors *[]domain.Actor) {
	items := make([]string, 0)
	if actors != nil {
		for _, actor := range *actors {
			items = append(items, actor.ActorURI)
		}
	}

	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(200, gin.H{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           collectionIRI,
		"type":         "OrderedCollection",
		"totalItems":   len(items),
		"orderedItems": items,
	})
}
