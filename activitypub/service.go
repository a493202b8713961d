package activitypub

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"minipub/db"
	"minipub/domain"
	"minipub/util"
)

const (
	// Fan-out delivery runs through a bounded pool, one attempt per inbox.
	deliveryConcurrency = 5
	deliveryTimeout     = 10 * time.Second

	fetchTimeout = 10 * time.Second
)

// Service is the federation engine: actor resolution and caching, handle
// discovery, inbox dispatch and outbound signed delivery for the single
// local actor.
type Service struct {
	db     *db.DB
	conf   *util.AppConfig
	client *Client
	// unsigned GETs: actor documents and WebFinger discovery
	fetcher *http.Client
	// discovery scheme, overridable in tests
	scheme string
}

func NewService(database *db.DB, conf *util.AppConfig, privateKey *rsa.PrivateKey) *Service {
	keyID := KeyId(conf.Conf.Domain, conf.Conf.Username)
	return &Service{
		db:      database,
		conf:    conf,
		client:  NewClient(privateKey, keyID),
		fetcher: &http.Client{Timeout: fetchTimeout},
		scheme:  "https",
	}
}

// SelfActor returns the local actor row seeded at bootstrap.
func (s *Service) SelfActor() (*domain.Actor, error) {
	err, actor := s.db.ReadActorByName(s.conf.Conf.Domain, s.conf.Conf.Username)
	if err != nil {
		return nil, fmt.Errorf("self actor not found: %w", err)
	}
	return actor, nil
}

func (s *Service) selfURI() string {
	return ActorIRI(s.conf.Conf.Domain, s.conf.Conf.Username)
}

// ActorIRI returns the canonical actor id URL for a local user.
func ActorIRI(domain string, username string) string {
	return fmt.Sprintf("https://%s/users/%s", domain, username)
}

func KeyId(domain string, username string) string {
	return fmt.Sprintf("%s#main-key", ActorIRI(domain, username))
}

func InboxIRI(domain string, username string) string {
	return fmt.Sprintf("%s/inbox", ActorIRI(domain, username))
}

func OutboxIRI(domain string, username string) string {
	return fmt.Sprintf("%s/outbox", ActorIRI(domain, username))
}

func FollowersIRI(domain string, username string) string {
	return fmt.Sprintf("%s/followers", ActorIRI(domain, username))
}

func FollowingIRI(domain string, username string) string {
	return fmt.Sprintf("%s/following", ActorIRI(domain, username))
}

func PostIRI(domain string, username string, postId uuid.UUID) string {
	return fmt.Sprintf("%s/posts/%s", ActorIRI(domain, username), postId)
}

// newActivityIRI mints an id for a locally originated activity.
func (s *Service) newActivityIRI() string {
	return fmt.Sprintf("https://%s/activities/%s", s.conf.Conf.Domain, uuid.New())
}
