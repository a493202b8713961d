package web

import (
	"fmt"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"golang.org/x/time/rate"

	"minipub/activitypub"
	"minipub/db"
	"minipub/util"
)

// NewRouter wires all HTTP routes: the federation endpoints, the public
// pages and the authenticated actions.
func NewRouter(conf *util.AppConfig, database *db.DB, ap *activitypub.Service) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.SetHTMLTemplate(Templates())

	auth := BasicAuthMiddleware(conf.Conf.Username, conf.Conf.Password)

	// Web UI routes
	g.GET("/", func(c *gin.Context) {
		HandleIndex(c, conf, database)
	})

	g.GET("/timeline", auth, func(c *gin.Context) {
		HandleTimeline(c, conf, database)
	})

	g.POST("/action/follow", auth, func(c *gin.Context) {
		HandleFollowAction(c, ap)
	})

	g.POST("/action/post", auth, func(c *gin.Context) {
		HandlePostAction(c, ap)
	})

	// RSS Feed
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		rss, err := GetRSS(conf, database)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	// Discovery
	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		HandleWebfinger(c, conf)
	})

	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		HandleNodeinfoDiscovery(c, conf)
	})

	g.GET("/nodeinfo/2.1", func(c *gin.Context) {
		HandleNodeinfo(c)
	})

	// Actor document, also reachable under the handle-style path
	g.GET("/users/:name", func(c *gin.Context) {
		HandleActor(c, conf, database)
	})

	g.GET(fmt.Sprintf("/@%s", conf.Conf.Username), func(c *gin.Context) {
		c.Params = append(c.Params, gin.Param{Key: "name", Value: conf.Conf.Username})
		HandleActor(c, conf, database)
	})

	// Stricter rate limit for inbound federation: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.POST("/users/:name/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		HandleInbox(c, conf, ap)
	})

	g.GET("/users/:name/followers", func(c *gin.Context) {
		HandleFollowers(c, conf, database, ap)
	})

	g.GET("/users/:name/following", func(c *gin.Context) {
		HandleFollowing(c, conf, database, ap)
	})

	g.GET("/users/:name/outbox", func(c *gin.Context) {
		HandleOutbox(c, conf, database, ap)
	})

	return g
}
