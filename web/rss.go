package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/feeds"

	"minipub/db"
	"minipub/util"
)

// GetRSS renders the local actor's posts as an RSS feed.
func GetRSS(conf *util.AppConfig, database *db.DB) (string, error) {
	err, self := database.ReadActorByName(conf.Conf.Domain, conf.Conf.Username)
	if err != nil {
		log.Println("Could not read local actor!", err)
		return "", errors.New("error retrieving local actor")
	}

	err, posts := database.ReadPostsByAuthor(self.Id)
	if err != nil || posts == nil {
		log.Println(fmt.Sprintf("Could not get posts from %s!", conf.Conf.Username), err)
		return "", errors.New("error retrieving posts")
	}

	link := fmt.Sprintf("https://%s/feed", conf.Conf.Domain)
	email := fmt.Sprintf("%s@%s", conf.Conf.Username, conf.Conf.Domain)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - %s", util.Name, conf.Conf.Username),
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("posts by %s", email),
		Author:      &feeds.Author{Name: conf.Conf.Username, Email: email},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, post := range *posts {
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      post.Id.String(),
				Title:   post.PostedAt.Format(util.DateTimeFormat()),
				Link:    &feeds.Link{Href: fmt.Sprintf("https://%s/users/%s/posts/%s", conf.Conf.Domain, conf.Conf.Username, post.Id)},
				Content: post.Content,
				Author:  &feeds.Author{Name: post.Author, Email: email},
				Created: post.PostedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}
