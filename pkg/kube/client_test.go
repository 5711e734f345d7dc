package kube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDeployments = Resource{
	GroupVersion: "/apis/apps/v1",
	Name:         "deployments",
	Namespaced:   true,
	HumanName:    "deployment",
}

var testNodes = Resource{
	GroupVersion: "/api/v1",
	Name:         "nodes",
	HumanName:    "node",
}

func TestResourceURI(t *testing.T) {
	assert.Equal(t, "/apis/apps/v1/namespaces/stash/deployments",
		testDeployments.URI("stash", "", nil))
	assert.Equal(t, "/apis/apps/v1/namespaces/stash/deployments/minio",
		testDeployments.URI("stash", "minio", nil))
	assert.Equal(t, "/api/v1/nodes",
		testNodes.URI("ignored-for-cluster-scope", "", nil))
	assert.Equal(t, "/api/v1/nodes?fieldSelector=metadata.name%3Dnode-a",
		testNodes.URI("", "", url.Values{"fieldSelector": {"metadata.name=node-a"}}))
}

// fakeAPIServer records the last request and replies with a canned body.
type fakeAPIServer struct {
	lastMethod  string
	lastURI     string
	lastAuth    string
	lastType    string
	lastBody    map[string]any
	statusCode  int
	responseRaw string
}

func (f *fakeAPIServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastMethod = r.Method
		f.lastURI = r.URL.RequestURI()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastType = r.Header.Get("Content-Type")
		f.lastBody = nil
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&f.lastBody)
		}

		if f.statusCode != 0 {
			w.WriteHeader(f.statusCode)
		}
		w.Write([]byte(f.responseRaw))
	})
}

func testClient(t *testing.T, fake *fakeAPIServer) *Client {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Server: srv.URL, Token: "tok3n"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresServer(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorContains(t, err, "server URL is required")
}

func TestQuerySendsBearerToken(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"items": [{"metadata": {"name": "minio"}}]}`}
	client := testClient(t, fake)

	list, err := testDeployments.Query(context.Background(), client, "stash", nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, fake.lastMethod)
	assert.Equal(t, "/apis/apps/v1/namespaces/stash/deployments", fake.lastURI)
	assert.Equal(t, "Bearer tok3n", fake.lastAuth)
	require.Len(t, list.Items, 1)
	assert.Equal(t, map[string]any{"name": "minio"}, list.Items[0]["metadata"])
}

func TestCreatePostsObject(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"metadata": {"name": "minio", "uid": "u-1"}}`}
	client := testClient(t, fake)

	obj := Object{"metadata": map[string]any{"name": "minio"}}
	created, err := testDeployments.Create(context.Background(), client, "stash", obj)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, fake.lastMethod)
	assert.Equal(t, "application/json", fake.lastType)
	assert.Equal(t, map[string]any{"name": "minio"}, fake.lastBody["metadata"])
	assert.Equal(t, map[string]any{"name": "minio", "uid": "u-1"}, created["metadata"])
}

func TestUpdateSendsMergePatch(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"spec": {"replicas": 0}}`}
	client := testClient(t, fake)

	patch := Object{"spec": map[string]any{"replicas": 0}}
	_, err := testDeployments.Update(context.Background(), client, "stash", "minio", patch)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, fake.lastMethod)
	assert.Equal(t, "/apis/apps/v1/namespaces/stash/deployments/minio", fake.lastURI)
	assert.Equal(t, "application/merge-patch+json", fake.lastType)
}

func TestDelete(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"status": "Success"}`}
	client := testClient(t, fake)

	require.NoError(t, testDeployments.Delete(context.Background(), client, "stash", "minio"))
	assert.Equal(t, http.MethodDelete, fake.lastMethod)
	assert.Equal(t, "/apis/apps/v1/namespaces/stash/deployments/minio", fake.lastURI)
}

func TestGetInstance(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"items": [{"metadata": {"name": "node-a"}}]}`}
	client := testClient(t, fake)

	obj, err := testNodes.GetInstance(context.Background(), client, "", "node-a")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/nodes?fieldSelector=metadata.name%3Dnode-a", fake.lastURI)
	assert.Equal(t, map[string]any{"name": "node-a"}, obj["metadata"])
}

func TestGetInstanceMissing(t *testing.T) {
	fake := &fakeAPIServer{responseRaw: `{"items": []}`}
	client := testClient(t, fake)

	_, err := testNodes.GetInstance(context.Background(), client, "", "node-a")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, `unable to find "node-a" node`)
}

func TestNonSuccessStatusBecomesAPIError(t *testing.T) {
	fake := &fakeAPIServer{statusCode: http.StatusForbidden, responseRaw: `{"reason": "Forbidden"}`}
	client := testClient(t, fake)

	_, err := testDeployments.Query(context.Background(), client, "stash", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Forbidden")
}
