/*
Package control implements the client for the appliance control plane, the
RPC-accessible management daemon that owns OS-level services.

The wire protocol is JSON-RPC 2.0 over a unix domain socket. Every call is a
single request/response exchange bounded by a per-call timeout; retry policy
belongs to the invoking clustering daemon, never to this client.

Failures split into two classes:

  - TransportError: the socket could not be reached or the connection broke.
  - CallError: the control plane received the call and rejected it.

Callers distinguish them with errors.As, since monitoring degrades gracefully
on transport failures while per-service call failures are recorded against the
service that caused them.
*/
package control
