package web

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"minipub/activitypub"
	"minipub/db"
	"minipub/util"
)

// HandleWebfinger serves the discovery document for the single local
// actor; any other acct: resource is not found.
func HandleWebfinger(c *gin.Context, conf *util.AppConfig) {
	domainName := conf.Conf.Domain
	username := conf.Conf.Username

	resource := c.Query("resource")
	if resource != fmt.Sprintf("acct:%s@%s", username, domainName) {
		NotFound(c)
		return
	}

	actorURI := activitypub.ActorIRI(domainName, username)
	c.JSON(200, gin.H{
		"subject": fmt.Sprintf("acct:%s@%s", username, domainName),
		"aliases": []string{
			fmt.Sprintf("https://%s/@%s", domainName, username),
			actorURI,
		},
		"links": []gin.H{
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": actorURI,
			},
		},
	})
}

// HandleActor serves the Person document. Plain browsers (no
// activity+json accept) get redirected to the landing page.
func HandleActor(c *gin.Context, conf *util.AppConfig, database *db.DB) {
	domainName := conf.Conf.Domain
	username := conf.Conf.Username

	if !strings.Contains(c.GetHeader("Accept"), "application/activity+json") {
		c.Redirect(302, "/")
		return
	}

	if name := c.Param("name"); name != "" && name != username {
		NotFound(c)
		return
	}

	err, self := database.ReadActorByName(domainName, username)
	if err != nil {
		NotFound(c)
		return
	}

	actorURI := activitypub.ActorIRI(domainName, username)

	displayName := self.DisplayName
	if displayName == "" {
		displayName = username
	}

	doc := gin.H{
		"@context": []interface{}{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
			gin.H{"manuallyApprovesFollowers": "as:manuallyApprovesFollowers"},
		},
		"id":                        actorURI,
		"type":                      "Person",
		"preferredUsername":         username,
		"name":                      displayName,
		"url":                       fmt.Sprintf("https://%s/@%s", domainName, username),
		"inbox":                     activitypub.InboxIRI(domainName, username),
		"outbox":                    activitypub.OutboxIRI(domainName, username),
		"followers":                 activitypub.FollowersIRI(domainName, username),
		"following":                 activitypub.FollowingIRI(domainName, username),
		"manuallyApprovesFollowers": false,
		"discoverable":              true,
		"publicKey": gin.H{
			"id":           activitypub.KeyId(domainName, username),
			"owner":        actorURI,
			"publicKeyPem": self.PublicKeyPem,
		},
	}

	if self.IconURL != "" {
		doc["icon"] = gin.H{
			"type":      "Image",
			"mediaType": "image/png",
			"url":       self.IconURL,
		}
	}

	c.Header("Content-Type", "application/activity+json; charset=utf-8")
	c.JSON(200, doc)
}

// HandleNodeinfoDiscovery serves the well-known nodeinfo pointer.
func HandleNodeinfoDiscovery(c *gin.Context, conf *util.AppConfig) {
	c.JSON(200, gin.H{
		"links": []gin.H{
			{
				"rel":  "http://nodeinfo.diaspora.software/ns/schema/2.1",
				"href": fmt.Sprintf("https://%s/nodeinfo/2.1", conf.Conf.Domain),
			},
		},
	})
}

// HandleNodeinfo serves the nodeinfo 2.1 document for this single-user node.
func HandleNodeinfo(c *gin.Context) {
	c.JSON(200, gin.H{
		"version":           "2.1",
		"openRegistrations": false,
		"protocols":         []string{"activitypub"},
		"software": gin.H{
			"name":    util.Name,
			"version": util.GetVersion(),
		},
		"usage": gin.H{
			"users": gin.H{"total": 1},
		},
		"services": gin.H{
			"inbound":  []string{},
			"outbound": []string{},
		},
		"metadata": gin.H{},
	})
}
