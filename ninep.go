// Package ninep models the filesystem as seen by the 9P2000 protocol: the
// wire value types (qids, mode words, open modes, stats) live in the data
// subpackage, while this package defines the capability contract a
// 9P-speaking endpoint implements for a hierarchy of directories and files.
//
// The package deliberately stops short of the wire itself. Message framing,
// session handling and fid multiplexing belong to a transport layer that
// drives these interfaces from real protocol messages; storage belongs to a
// backend such as memfs or sqlfs.
package ninep

// Version is the protocol dialect whose semantics this package models.
const Version = "9P2000"

// IoUnit is the maximum number of bytes guaranteed to be read from or
// written to a file without breaking the transfer into multiple protocol
// messages. Zero means no guarantee. Purely advisory at this layer.
type IoUnit uint32
