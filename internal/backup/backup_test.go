package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/steveyegge/contacts/internal/contact"
)

// fakeS3 serves the subset of path-style S3 used by Store from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return f.list(req.URL.Query().Get("prefix"), req.URL.Query().Get("delimiter")), nil

	case req.Method == http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = body
		return response(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil

	case req.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, http.Header{}), nil
		}
		return response(http.StatusOK, body, http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			"ETag":           {`"etag"`},
		}), nil
	}
	return response(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (f *fakeS3) list(prefix, delimiter string) *http.Response {
	var keys []string
	prefixes := map[string]bool{}
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				prefixes[prefix+rest[:i+1]] = true
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
	}
	for p := range prefixes {
		fmt.Fprintf(&b, "<CommonPrefixes><Prefix>%s</Prefix></CommonPrefixes>", p)
	}
	b.WriteString("</ListBucketResult>")
	return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func response(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

// decodeChunked unwraps a single-chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newTestStore(t *testing.T, prefix string) (*Store, *fakeS3) {
	t.Helper()

	fake := &fakeS3{objects: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://s3.test.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
	})
	return NewWithClient(client, "contacts-backup", prefix), fake
}

func testContacts() []*contact.Contact {
	value := 1500.0
	return []*contact.Contact{
		{
			ContactID:     "c-ada",
			Name:          "Ada Lovelace",
			Company:       contact.StringPtr("Analytical Engines"),
			Opportunities: []contact.Opportunity{{Project: "Engine", EstimatedValue: &value}},
			CreatedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			ContactID: "c-grace",
			Name:      "Grace Hopper",
			CreatedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		},
	}
}

func TestPushAndDocuments(t *testing.T) {
	store, fake := newTestStore(t, "/team/")
	ctx := context.Background()
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)

	snapshot, err := store.Push(ctx, testContacts(), now)
	if err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	if snapshot != "20250607T080910Z" {
		t.Errorf("snapshot = %q, want %q", snapshot, "20250607T080910Z")
	}
	if _, ok := fake.objects["team/20250607T080910Z/c-ada.yaml"]; !ok {
		keys := make([]string, 0, len(fake.objects))
		for k := range fake.objects {
			keys = append(keys, k)
		}
		t.Fatalf("object not stored under expected key, have %v", keys)
	}

	docs, err := store.Documents(ctx, snapshot)
	if err != nil {
		t.Fatalf("Documents() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].ContactID() != "c-ada" || docs[1].ContactID() != "c-grace" {
		t.Errorf("ids = %q, %q", docs[0].ContactID(), docs[1].ContactID())
	}

	c, err := docs[0].Contact()
	if err != nil {
		t.Fatalf("Contact() failed: %v", err)
	}
	if c.Name != "Ada Lovelace" || len(c.Opportunities) != 1 || *c.Opportunities[0].EstimatedValue != 1500 {
		t.Errorf("round-tripped contact = %+v", c)
	}
	if !c.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", c.CreatedAt)
	}
}

func TestSnapshotsAndLatest(t *testing.T) {
	store, _ := newTestStore(t, "")
	ctx := context.Background()

	if _, err := store.Latest(ctx); err == nil {
		t.Fatal("Latest() on an empty bucket succeeded, want error")
	}

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{first.Add(48 * time.Hour), first} {
		if _, err := store.Push(ctx, testContacts(), at); err != nil {
			t.Fatalf("Push() failed: %v", err)
		}
	}

	names, err := store.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots() failed: %v", err)
	}
	want := []string{"20250101T000000Z", "20250103T000000Z"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Snapshots() = %v, want %v", names, want)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if latest != "20250103T000000Z" {
		t.Errorf("Latest() = %q", latest)
	}
}

func TestDocuments_MissingSnapshot(t *testing.T) {
	store, _ := newTestStore(t, "p")
	if _, err := store.Documents(context.Background(), "20200101T000000Z"); err == nil {
		t.Fatal("Documents() of a missing snapshot succeeded, want error")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("New() without bucket succeeded, want error")
	}
	s, err := New(context.Background(), Config{
		Bucket:          "b",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if s.Bucket() != "b" {
		t.Errorf("Bucket() = %q", s.Bucket())
	}
}
