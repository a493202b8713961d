package activitypub

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"minipub/db"
	"minipub/domain"
	"minipub/util"
)

const testDomain = "example.com"
const testUsername = "alice"

// newTestService wires a Service against a throwaway database, with the
// plain-http scheme so httptest servers are reachable.
func newTestService(t *testing.T) (*Service, *db.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	conf := &util.AppConfig{}
	conf.Conf.Domain = testDomain
	conf.Conf.Username = testUsername

	err, _ = database.UpsertActor(&domain.Actor{
		ScreenName:   testUsername,
		Domain:       testDomain,
		DisplayName:  testUsername,
		PublicKeyPem: "self-pem",
		ActorURI:     ActorIRI(testDomain, testUsername),
		InboxURI:     InboxIRI(testDomain, testUsername),
	})
	if err != nil {
		t.Fatalf("Failed to seed self actor: %v", err)
	}

	svc := NewService(database, conf, privateKey)
	svc.scheme = "http"
	return svc, database
}

// remoteActor is a fake federated peer: it serves its webfinger and actor
// documents and records everything POSTed to its inbox.
type remoteActor struct {
	name   string
	server *httptest.Server

	mu       sync.Mutex
	received []*http.Request
	bodies   [][]byte
	broken   bool
}

func newRemoteActor(t *testing.T, name string) *remoteActor {
	t.Helper()

	ra := &remoteActor{name: name}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/webfinger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"subject": fmt.Sprintf("acct:%s@%s", ra.name, ra.host()),
			"links": []map[string]string{
				{
					"rel":  "self",
					"type": "application/activity+json",
					"href": ra.actorURI(),
				},
			},
		})
	})
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                ra.actorURI(),
			"type":              "Person",
			"preferredUsername": ra.name,
			"name":              "Remote " + ra.name,
			"inbox":             ra.inboxURI(),
			"publicKey": map[string]string{
				"id":           ra.actorURI() + "#main-key",
				"owner":        ra.actorURI(),
				"publicKeyPem": "remote-pem",
			},
		})
	})
	mux.HandleFunc("/inbox", func(w http.ResponseWriter, r *http.Request) {
		ra.mu.Lock()
		broken := ra.broken
		ra.mu.Unlock()
		if broken {
			w.WriteHeader(500)
			return
		}
		body, _ := io.ReadAll(r.Body)
		ra.mu.Lock()
		ra.received = append(ra.received, r.Clone(r.Context()))
		ra.bodies = append(ra.bodies, body)
		ra.mu.Unlock()
		w.WriteHeader(202)
	})

	ra.server = httptest.NewServer(mux)
	t.Cleanup(ra.server.Close)
	return ra
}

func (ra *remoteActor) host() string {
	parsed, _ := url.Parse(ra.server.URL)
	return parsed.Host
}

func (ra *remoteActor) handle() string {
	return fmt.Sprintf("@%s@%s", ra.name, ra.host())
}

func (ra *remoteActor) actorURI() string {
	return fmt.Sprintf("%s/users/%s", ra.server.URL, ra.name)
}

func (ra *remoteActor) inboxURI() string {
	return ra.server.URL + "/inbox"
}

func (ra *remoteActor) failInbox(fail bool) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.broken = fail
}

func (ra *remoteActor) inboxCount() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return len(ra.bodies)
}

func (ra *remoteActor) lastActivity(t *testing.T) map[string]interface{} {
	t.Helper()
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if len(ra.bodies) == 0 {
		t.Fatal("No activity was delivered")
	}
	var activity map[string]interface{}
	if err := json.Unmarshal(ra.bodies[len(ra.bodies)-1], &activity); err != nil {
		t.Fatalf("Delivered activity is not valid JSON: %v", err)
	}
	return activity
}

func (ra *remoteActor) lastRequest(t *testing.T) *http.Request {
	t.Helper()
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if len(ra.received) == 0 {
		t.Fatal("No request was received")
	}
	return ra.received[len(ra.received)-1]
}
