// Package events defines the cluster event records emitted to the control
// plane when node health changes or a lifecycle hook fails. The records are
// informational; subscribers on other nodes receive them through the control
// plane's event stream.
package events
