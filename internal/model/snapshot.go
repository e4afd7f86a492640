package model

import "time"

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// BackupUser is a User row including its password hash, used only in snapshots.
type BackupUser struct {
	User
	PasswordHash string `json:"password_hash"`
}

// Snapshot is a full backup of users and submissions.
type Snapshot struct {
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Users       []BackupUser      `json:"users"`
	Submissions []IuranSubmission `json:"submissions"`
}
