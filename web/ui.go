package web

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"minipub/db"
	"minipub/domain"
	"minipub/util"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded HTML templates for the router.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}

const timelinePageSize = 20

type IndexPageData struct {
	Title  string
	Handle string
	Posts  []PostView
}

type TimelinePageData struct {
	Title     string
	Handle    string
	Followers int
	Following int
	Posts     []PostView
}

type PostView struct {
	Author      string
	ContentHTML template.HTML
	TimeAgo     string
}

func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	} else if duration < 30*24*time.Hour {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	} else {
		return t.Format("Jan 2, 2006")
	}
}

func toPostViews(posts *[]domain.Post) []PostView {
	views := make([]PostView, 0)
	if posts == nil {
		return views
	}
	for _, post := range *posts {
		views = append(views, PostView{
			Author:      post.Author,
			ContentHTML: template.HTML(util.ContentToHTML(post.Content)),
			TimeAgo:     formatTimeAgo(post.PostedAt),
		})
	}
	return views
}

// HandleIndex serves the public landing page with the local actor's posts.
func HandleIndex(c *gin.Context, conf *util.AppConfig, database *db.DB) {
	handle := fmt.Sprintf("@%s@%s", conf.Conf.Username, conf.Conf.Domain)

	err, self := database.ReadActorByName(conf.Conf.Domain, conf.Conf.Username)
	if err != nil {
		log.Printf("Failed to read local actor: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load page"})
		return
	}

	err, posts := database.ReadPostsByAuthor(self.Id)
	if err != nil {
		log.Printf("Failed to read posts: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load posts"})
		return
	}

	c.HTML(200, "index.html", IndexPageData{
		Title:  util.GetNameAndVersion(),
		Handle: handle,
		Posts:  toPostViews(posts),
	})
}

// HandleTimeline serves the authenticated timeline: recent posts from the
// local actor and every followed actor, plus follow counts.
func HandleTimeline(c *gin.Context, conf *util.AppConfig, database *db.DB) {
	err, self := database.ReadActorByName(conf.Conf.Domain, conf.Conf.Username)
	if err != nil {
		log.Printf("Failed to read local actor: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load timeline"})
		return
	}

	err, followers := database.CountFollowers(self.Id)
	if err != nil {
		log.Printf("Failed to count followers: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load timeline"})
		return
	}

	err, following := database.CountFollowing(self.Id)
	if err != nil {
		log.Printf("Failed to count following: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load timeline"})
		return
	}

	err, posts := database.ReadRecentPosts(timelinePageSize)
	if err != nil {
		log.Printf("Failed to read posts: %v", err)
		c.HTML(500, "error.html", gin.H{"Title": "Error", "Error": "Failed to load timeline"})
		return
	}

	c.HTML(200, "timeline.html", TimelinePageData{
		Title:     "Timeline",
		Handle:    fmt.Sprintf("@%s@%s", conf.Conf.Username, conf.Conf.Domain),
		Followers: followers,
		Following: following,
		Posts:     toPostViews(posts),
	})
}
