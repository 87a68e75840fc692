// Package interfaces provides internal interface definitions for the
// engine. These are separate from the public package to avoid circular
// imports between the root package and internal packages that need to
// log or emit metrics without importing it back.
package interfaces

// Logger is the minimal structured-logging surface the engine writes
// to. *logging.Logger implements it.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives engine activity counters. A host sharing one
// Observer across multiple sockets must make its implementation safe
// for that, since each socket is independently single-threaded but
// sockets are not serialized against each other.
type Observer interface {
	ObserveTick(pendingConnections int)
	ObserveRecv(bytes int, accepted bool)
	ObserveHandshake(minted bool, verified bool)
	ObserveRehash(table string, direction string)
	ObservePoolCull(freed int)
}
