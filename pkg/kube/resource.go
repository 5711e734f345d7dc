package kube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// mergePatchHeaders is sent on updates so partial objects merge into the
// stored resource instead of replacing it.
var mergePatchHeaders = map[string]string{
	"Content-Type": "application/merge-patch+json",
}

// Resource describes one API resource type and how its URIs are built, per
// the Kubernetes resource-URI scheme.
type Resource struct {
	// GroupVersion is the API path prefix, e.g. "/api/v1" or
	// "/apis/apps/v1".
	GroupVersion string

	// Name is the lowercase plural resource name, e.g. "deployments".
	Name string

	// Namespaced is true for resources scoped to a namespace.
	Namespaced bool

	// HumanName is used in error messages, e.g. "deployment".
	HumanName string
}

// URI builds the resource URI. namespace and objectName may be empty.
func (r Resource) URI(namespace, objectName string, params url.Values) string {
	parts := []string{strings.TrimRight(r.GroupVersion, "/")}
	if r.Namespaced && namespace != "" {
		parts = append(parts, "namespaces", namespace)
	}
	parts = append(parts, r.Name)
	if objectName != "" {
		parts = append(parts, objectName)
	}

	uri := strings.Join(parts, "/")
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	return uri
}

// Query lists objects matching the given selectors.
func (r Resource) Query(ctx context.Context, c *Client, namespace string, params url.Values) (List, error) {
	var list List
	err := c.Do(ctx, http.MethodGet, r.URI(namespace, "", params), nil, &list, nil)
	return list, err
}

// GetInstance finds a single object by name via a field selector.
func (r Resource) GetInstance(ctx context.Context, c *Client, namespace, name string) (Object, error) {
	params := url.Values{"fieldSelector": {"metadata.name=" + name}}
	list, err := r.Query(ctx, c, namespace, params)
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, &APIError{
			Endpoint: r.URI(namespace, "", nil),
			Message:  fmt.Sprintf("unable to find %q %s", name, r.HumanName),
		}
	}
	return list.Items[0], nil
}

// Create posts a new object.
func (r Resource) Create(ctx context.Context, c *Client, namespace string, obj Object) (Object, error) {
	var created Object
	err := c.Do(ctx, http.MethodPost, r.URI(namespace, "", nil), obj, &created, nil)
	return created, err
}

// Update merge-patches an existing object.
func (r Resource) Update(ctx context.Context, c *Client, namespace, name string, patch Object) (Object, error) {
	var updated Object
	err := c.Do(ctx, http.MethodPatch, r.URI(namespace, name, nil), patch, &updated, mergePatchHeaders)
	return updated, err
}

// Delete removes an object.
func (r Resource) Delete(ctx context.Context, c *Client, namespace, name string) error {
	return c.Do(ctx, http.MethodDelete, r.URI(namespace, name, nil), nil, nil, nil)
}
