package dns01

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudflareValidatesCredentials(t *testing.T) {
	_, err := NewCloudflare(map[string]string{"api_key": "k"})
	assert.ErrorContains(t, err, "cloudflare_email")

	_, err = NewCloudflare(map[string]string{"cloudflare_email": "a@b.c"})
	assert.ErrorContains(t, err, "api_key")

	auth, err := NewCloudflare(map[string]string{"cloudflare_email": "a@b.c", "api_key": "k"})
	require.NoError(t, err)
	assert.NotNil(t, auth)
}

func TestBaseDomainGuesses(t *testing.T) {
	assert.Equal(t,
		[]string{"a.b.example.com", "b.example.com", "example.com"},
		BaseDomainGuesses("a.b.example.com"))
	assert.Equal(t, []string{"example.com"}, BaseDomainGuesses("example.com"))
}

// fakeCloudflare serves the minimal slice of the v4 API the authenticator
// uses.
type fakeCloudflare struct {
	zoneName string
	records  map[string]dnsRecord
	nextID   int
	creds    func(r *http.Request) bool
}

func (f *fakeCloudflare) handler() http.Handler {
	mux := http.NewServeMux()

	write := func(w http.ResponseWriter, result any) {
		raw, _ := json.Marshal(result)
		json.NewEncoder(w).Encode(envelope{Success: true, Result: raw})
	}
	writeErr := func(w http.ResponseWriter, code int, msg string) {
		json.NewEncoder(w).Encode(envelope{Success: false, Errors: []APIError{{Code: code, Message: msg}}})
	}

	mux.HandleFunc("/zones", func(w http.ResponseWriter, r *http.Request) {
		if f.creds != nil && !f.creds(r) {
			writeErr(w, 9103, "Unknown X-Auth-Key or X-Auth-Email")
			return
		}
		if r.URL.Query().Get("name") == f.zoneName {
			write(w, []zone{{ID: "zone-1", Name: f.zoneName}})
			return
		}
		write(w, []zone{})
	})

	mux.HandleFunc("/zones/zone-1/dns_records", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var rec dnsRecord
			json.NewDecoder(r.Body).Decode(&rec)
			f.nextID++
			rec.ID = "rec-" + string(rune('0'+f.nextID))
			f.records[rec.ID] = rec
			write(w, rec)
		case http.MethodGet:
			q := r.URL.Query()
			var matches []dnsRecord
			for _, rec := range f.records {
				if rec.Type == q.Get("type") && rec.Name == q.Get("name") && rec.Content == q.Get("content") {
					matches = append(matches, rec)
				}
			}
			write(w, matches)
		}
	})

	mux.HandleFunc("/zones/zone-1/dns_records/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Path[len("/zones/zone-1/dns_records/"):]
		if _, ok := f.records[id]; !ok {
			writeErr(w, 81044, "Record not found")
			return
		}
		delete(f.records, id)
		write(w, dnsRecord{ID: id})
	})

	return mux
}

func testCloudflare(t *testing.T, fake *fakeCloudflare) *Cloudflare {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	auth, err := NewCloudflare(map[string]string{"cloudflare_email": "a@b.c", "api_key": "secret"})
	require.NoError(t, err)

	cf := auth.(*Cloudflare)
	cf.baseURL = srv.URL
	return cf
}

func TestPerformCreatesAndVerifiesTXTRecord(t *testing.T) {
	fake := &fakeCloudflare{zoneName: "example.com", records: make(map[string]dnsRecord)}
	cf := testCloudflare(t, fake)

	err := cf.Perform(context.Background(), "www.example.com", "_acme-challenge.www.example.com", "tok3n")
	require.NoError(t, err)

	require.Len(t, fake.records, 1)
	for _, rec := range fake.records {
		assert.Equal(t, "TXT", rec.Type)
		assert.Equal(t, "_acme-challenge.www.example.com", rec.Name)
		assert.Equal(t, `"tok3n"`, rec.Content)
		assert.Equal(t, 3600, rec.TTL)
	}
}

func TestPerformBadCredentials(t *testing.T) {
	fake := &fakeCloudflare{
		zoneName: "example.com",
		records:  make(map[string]dnsRecord),
		creds:    func(r *http.Request) bool { return r.Header.Get("X-Auth-Key") == "other" },
	}
	cf := testCloudflare(t, fake)

	err := cf.Perform(context.Background(), "www.example.com", "_acme-challenge.www.example.com", "tok3n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid Cloudflare API credentials")
}

func TestPerformUnknownZone(t *testing.T) {
	fake := &fakeCloudflare{zoneName: "other.net", records: make(map[string]dnsRecord)}
	cf := testCloudflare(t, fake)

	err := cf.Perform(context.Background(), "www.example.com", "_acme-challenge.www.example.com", "tok3n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to determine zone id")
}

func TestCleanupDeletesRecord(t *testing.T) {
	fake := &fakeCloudflare{zoneName: "example.com", records: make(map[string]dnsRecord)}
	cf := testCloudflare(t, fake)

	ctx := context.Background()
	require.NoError(t, cf.Perform(ctx, "www.example.com", "_acme-challenge.www.example.com", "tok3n"))
	require.Len(t, fake.records, 1)

	require.NoError(t, cf.Cleanup(ctx, "www.example.com", "_acme-challenge.www.example.com", "tok3n"))
	assert.Empty(t, fake.records)
}

func TestCleanupNothingToDo(t *testing.T) {
	fake := &fakeCloudflare{zoneName: "example.com", records: make(map[string]dnsRecord)}
	cf := testCloudflare(t, fake)

	assert.NoError(t, cf.Cleanup(context.Background(), "www.example.com", "_acme-challenge.www.example.com", "tok3n"))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fake", func(map[string]string) (Authenticator, error) { return nil, nil })

	assert.Equal(t, []string{"fake"}, reg.Providers())

	_, err := reg.Create("missing", nil)
	assert.ErrorContains(t, err, "unknown dns-01 provider")

	assert.Panics(t, func() {
		reg.Register("fake", func(map[string]string) (Authenticator, error) { return nil, nil })
	})
}

func TestCloudflareRegisteredInDefault(t *testing.T) {
	assert.Contains(t, Default.Providers(), "cloudflare")
}
