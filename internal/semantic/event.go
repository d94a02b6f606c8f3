// Package semantic defines the event model shared by the differ, the
// store, and the notes transport: the closed alphabet of event types,
// the layer taxonomy, and the commit and repository records.
package semantic

import (
	"fmt"
	"regexp"
	"strings"
)

// commitHashPattern matches a full 40-hex git object name.
var commitHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// FileNodeID returns the node id used for file-level events.
func FileNodeID(path string) string {
	return "file:" + path
}

// Event is one semantic change record. Events are immutable once stored.
type Event struct {
	// ID is assigned by the store at insert; zero before that.
	ID int64 `json:"event_id,omitempty"`
	// CommitHash is the full hash of the analyzed commit.
	CommitHash string `json:"commit_hash,omitempty"`
	// Branch is the branch checked out when the analysis ran.
	Branch string `json:"branch,omitempty"`
	// Type is the event type from the closed alphabet.
	Type EventType `json:"event_type"`
	// NodeID is the qualified name of the affected node, or a
	// file-level id of the form "file:<path>".
	NodeID string `json:"node_id"`
	// Location is the file path, optionally suffixed ":start-end".
	Location string `json:"location"`
	// Details is a short human description of the change.
	Details string `json:"details"`
	// Layer identifies the differ stage that produced the event.
	Layer Layer `json:"layer"`
	// LayerDescription is the human label of Layer.
	LayerDescription string `json:"layer_description"`
	// Confidence is nil for deterministic layers and set in [0,1]
	// for layers 5a and 5b.
	Confidence *float64 `json:"confidence"`
	// Reasoning optionally explains how the event was inferred.
	Reasoning string `json:"reasoning,omitempty"`
	// Impact optionally summarizes the expected effect of the change.
	Impact string `json:"impact,omitempty"`
	// CreatedAt is the insertion time in unix seconds; set by the store.
	CreatedAt int64 `json:"created_at,omitempty"`
	// Author is copied from the analyzed commit.
	Author string `json:"author,omitempty"`
}

// NewEvent builds a deterministic-layer event. The layer is derived from
// the event type; confidence stays nil.
func NewEvent(t EventType, nodeID, location, details string) Event {
	layer := LayerOf(t)
	return Event{
		Type:             t,
		NodeID:           nodeID,
		Location:         location,
		Details:          details,
		Layer:            layer,
		LayerDescription: layer.Description(),
	}
}

// NewScoredEvent builds a probabilistic-layer event carrying a confidence.
func NewScoredEvent(t EventType, nodeID, location, details string, confidence float64) Event {
	e := NewEvent(t, nodeID, location, details)
	e.Confidence = &confidence
	return e
}

// Validate checks the event against the model invariants. It does not
// require store-assigned fields (ID, CreatedAt) to be present.
func (e *Event) Validate() error {
	if !Known(e.Type) {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.NodeID == "" {
		return fmt.Errorf("event %s has empty node id", e.Type)
	}
	if !e.Layer.Valid() {
		return fmt.Errorf("event %s has invalid layer %q", e.Type, e.Layer)
	}
	if e.Layer.Deterministic() {
		if e.Confidence != nil {
			return fmt.Errorf("event %s on deterministic layer %s carries a confidence", e.Type, e.Layer)
		}
	} else if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("event %s confidence %v out of range", e.Type, *e.Confidence)
	}
	if e.CommitHash != "" && !commitHashPattern.MatchString(e.CommitHash) {
		return fmt.Errorf("event %s has malformed commit hash %q", e.Type, e.CommitHash)
	}
	return nil
}

// DedupKey is the identity used when merging note payloads into a store:
// events that agree on it are considered the same observation.
func (e *Event) DedupKey() string {
	return strings.Join([]string{
		e.CommitHash, string(e.Type), e.NodeID, string(e.Layer), e.Details,
	}, "\x1f")
}

// Commit is the per-commit metadata record kept alongside events.
type Commit struct {
	// Hash is the full commit hash; primary key of the record.
	Hash string
	// Branch is the branch checked out at analysis time.
	Branch string
	// Author is "Name <email>" of the commit author.
	Author string
	// Timestamp is the commit time in unix seconds.
	Timestamp int64
	// Message is the full commit message.
	Message string
	// ParentHashes lists the parent commit hashes.
	ParentHashes []string
	// Analyzed flips to true once the differ and store both succeeded.
	Analyzed bool
	// NotePending marks commits whose note write failed and should be
	// retried by the next sync.
	NotePending bool
}

// Validate checks the commit record.
func (c *Commit) Validate() error {
	if !commitHashPattern.MatchString(c.Hash) {
		return fmt.Errorf("malformed commit hash %q", c.Hash)
	}
	for _, p := range c.ParentHashes {
		if !commitHashPattern.MatchString(p) {
			return fmt.Errorf("malformed parent hash %q on commit %s", p, c.Hash)
		}
	}
	return nil
}

// RepositoryMeta is the singleton metadata row of a store.
type RepositoryMeta struct {
	// RepoPath is the absolute path of the repository root.
	RepoPath string
	// InitializedAt is when the store was created, unix seconds.
	InitializedAt int64
	// LastAnalyzedCommit is the hash of the most recently analyzed commit.
	LastAnalyzedCommit string
	// CurrentBranch is the branch recorded by the last hook run.
	CurrentBranch string
	// SchemaVersion is the store schema version.
	SchemaVersion int
	// ConfigBlob holds the serialized effective configuration.
	ConfigBlob string
}
