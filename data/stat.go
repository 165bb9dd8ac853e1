package data

import "encoding/json"

// RootName is the name the hierarchy root must carry in its stat.
const RootName = "/"

// Stat is a metadata snapshot for a single entity. It is a plain value:
// reading one never yields a live handle, and updates are expressed by
// handing a whole replacement Stat to WStat.
type Stat struct {
	// Type and Dev are reserved for the implementation and carried opaquely.
	Type uint16 `json:"type"`
	Dev  uint32 `json:"dev"`

	Qid  Qid      `json:"qid"`
	Mode FileMode `json:"mode"`

	// Last access and modification times, seconds since the epoch.
	Atime uint32 `json:"atime"`
	Mtime uint32 `json:"mtime"`

	// Length of the file in bytes; 0 for directories.
	Length uint64 `json:"length"`

	// Name of the file; must be "/" if the file is the root of the server.
	Name string `json:"name"`

	// Owner name, group name, and name of the user who last modified the
	// file.
	UID  string `json:"uid"`
	GID  string `json:"gid"`
	MUID string `json:"muid"`
}

// IsDir reports whether the stat describes a directory.
func (s Stat) IsDir() bool {
	return s.Mode.FileType.IsDir
}

// Marshal provides JSON serialization for Stat.
func (s *Stat) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal provides JSON deserialization for Stat.
func (s *Stat) Unmarshal(data []byte) error {
	return json.Unmarshal(data, s)
}
