/*
Package dns01 provides ACME DNS-01 challenge authenticators.

Each DNS provider implements the fixed Authenticator capability set,
Perform and Cleanup, and registers a factory under its name. Callers select
providers by registered-name lookup; credentials are validated when the
authenticator is constructed, not when the challenge runs.
*/
package dns01
