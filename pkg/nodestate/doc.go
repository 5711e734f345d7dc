/*
Package nodestate stores each node's last-observed service state.

One file per node lives on the shared volume so any cluster member can see a
cached copy of every node's run state from the last monitoring interval. The
file reflects only the most recent tick: saves are full rewrites, never
appends. Writers hold an exclusive advisory lock and fsync before releasing
it; readers hold a shared lock. Two nodes never contend for the same file
(the node id is part of the filename), but a node's reconciler and an
external viewer may.
*/
package nodestate
