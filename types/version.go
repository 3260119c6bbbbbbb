package types

// Version is the canonical project version.
// The CLI, the manifest record format and the completion event share it.
const Version = "0.3.0"

// ManifestVersion is the version of the per-request manifest record.
// Bumped independently when the manifest shape changes.
const ManifestVersion = "1"
