/*
Package kube is a deliberately thin Kubernetes API client.

The control plane only needs a handful of untyped reads and writes against a
single-node cluster it manages itself, so this package trades the weight of
the official client machinery for a JSON round-tripper plus Resource
descriptors that build resource URIs. Objects are plain maps; callers pick
out the fields they need.
*/
package kube
