/*
Package sharedvol loads the cluster-wide desired service state from the
shared storage volume.

The volume is fuse-mounted under the cluster root on every node. Because a
stale or empty directory can sit at the mountpoint when the mount is gone,
Check verifies the volume root's inode against the identity a real mount
carries rather than testing mere path existence. ENOTCONN-class IO errors are
mapped to ErrVolumeUnavailable, which fails the reconciliation tick closed.

The configuration file is read fresh on every tick under a shared advisory
lock; many nodes may read it concurrently while configuration tooling holds
the exclusive lock for writes.
*/
package sharedvol
