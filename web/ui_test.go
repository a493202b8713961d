package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", time.Now().Add(-30 * time.Second), "just now"},
		{"one minute", time.Now().Add(-90 * time.Second), "1 minute ago"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour", time.Now().Add(-90 * time.Minute), "1 hour ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3 hours ago"},
		{"one day", time.Now().Add(-25 * time.Hour), "1 day ago"},
		{"days", time.Now().Add(-72 * time.Hour), "3 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTimeAgo(tt.t)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIndexPage(t *testing.T) {
	router, database := newTestRouter(t)

	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	if err, _ := database.CreatePost(self.Id, "hello <script>", time.Now()); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, router, http.MethodGet, "/", "", nil)
	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	page := w.Body.String()
	if !strings.Contains(page, "@alice@example.com") {
		t.Error("Index should show the local handle")
	}
	if !strings.Contains(page, "&lt;script&gt;") {
		t.Error("Post content should be escaped in the page")
	}
	if strings.Contains(page, "<script>") {
		t.Error("Raw content must never reach the page")
	}
}

func TestTimelinePage(t *testing.T) {
	router, database := newTestRouter(t)

	err, self := database.ReadActorByName(testDomain, testUsername)
	if err != nil {
		t.Fatal(err)
	}
	if err, _ := database.CreatePost(self.Id, "a local post", time.Now()); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/timeline", nil)
	req.SetBasicAuth(testUsername, testPassword)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	page := w.Body.String()
	if !strings.Contains(page, "a local post") {
		t.Error("Timeline should show the post")
	}
	if !strings.Contains(page, "0 followers") {
		t.Error("Timeline should show the follower count")
	}
	if !strings.Contains(page, "0 following") {
		t.Error("Timeline should show the following count")
	}
}
