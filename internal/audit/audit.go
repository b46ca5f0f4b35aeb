// Package audit implements the append-only, hash-linked log of vault
// operations. The structured-entry-plus-slog style is adapted from the
// query auditor's entry shape; the chain hashing and NDJSON storage are
// this package's own, following the external-interface contract.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the closed set of operations the log can record.
type Action string

const (
	ActionVaultPush     Action = "vault.push"
	ActionVaultPull     Action = "vault.pull"
	ActionVaultSync     Action = "vault.sync"
	ActionVaultDiff     Action = "vault.diff"
	ActionSecretAdd     Action = "secret.add"
	ActionSecretUpdate  Action = "secret.update"
	ActionSecretRemove  Action = "secret.remove"
	ActionSecretRotate  Action = "secret.rotate"
	ActionKeyGenerate   Action = "key.generate"
	ActionKeyRotate     Action = "key.rotate"
	ActionAccessGranted Action = "access.granted"
	ActionAccessDenied  Action = "access.denied"
	ActionConfigChange  Action = "config.change"
)

// ActorType enumerates who performed an action.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorService ActorType = "service"
	ActorCI      ActorType = "ci"
	ActorUnknown ActorType = "unknown"
)

// Actor identifies who performed an entry's action.
type Actor struct {
	Name    string    `json:"name"`
	Type    ActorType `json:"type"`
	Email   string    `json:"email,omitempty"`
	Machine string    `json:"machine,omitempty"`
	IP      string    `json:"ip,omitempty"`
}

// TargetType enumerates what an entry's action was performed against.
type TargetType string

const (
	TargetVault  TargetType = "vault"
	TargetSecret TargetType = "secret"
	TargetKey    TargetType = "key"
	TargetConfig TargetType = "config"
)

// Target names what an action affected, by key name only — never value.
type Target struct {
	Type        TargetType `json:"type"`
	SecretKeys  []string   `json:"secretKeys,omitempty"`
	BeforeHash  string     `json:"beforeHash,omitempty"`
	AfterHash   string     `json:"afterHash,omitempty"`
}

// Context carries free-form, never-fabricated provenance data.
type Context struct {
	Environment string            `json:"environment,omitempty"`
	Branch      string            `json:"branch,omitempty"`
	Commit      string            `json:"commit,omitempty"`
	CIRunID     string            `json:"ciRunId,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Entry is one hash-linked record in the log.
type Entry struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Action       Action  `json:"action"`
	Actor        Actor   `json:"actor"`
	Target       Target  `json:"target"`
	Context      Context `json:"context"`
	PreviousHash string  `json:"previousHash,omitempty"`
	Hash         string  `json:"hash"`
}

// canonical is the stable field order used for hashing, with Hash
// omitted entirely (not present as null or empty string) so the
// canonical form is identical regardless of the entry's position.
type canonical struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Action       Action  `json:"action"`
	Actor        Actor   `json:"actor"`
	Target       Target  `json:"target"`
	Context      Context `json:"context"`
	PreviousHash string  `json:"previousHash,omitempty"`
}

// computeHash returns the SHA-256 hex digest of the entry's canonical
// encoding, excluding the hash field.
func computeHash(e Entry) string {
	c := canonical{
		ID:           e.ID,
		Timestamp:    e.Timestamp,
		Action:       e.Action,
		Actor:        e.Actor,
		Target:       e.Target,
		Context:      e.Context,
		PreviousHash: e.PreviousHash,
	}
	data, err := json.Marshal(c)
	if err != nil {
		// Marshaling a closed struct of primitives never fails.
		panic(fmt.Sprintf("audit: canonical marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewEntry builds and hashes an entry given the previous entry's hash
// (empty for the first entry in the chain).
func NewEntry(action Action, actor Actor, target Target, ctx Context, previousHash string) Entry {
	e := Entry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Action:       action,
		Actor:        actor,
		Target:       target,
		Context:      ctx,
		PreviousHash: previousHash,
	}
	e.Hash = computeHash(e)
	return e
}

// InferActor follows the actor-inference order: a CI marker environment
// wins over the OS user, and the machine field is always attempted.
func InferActor() Actor {
	actor := Actor{Type: ActorUnknown}

	if name, ok := ciActorName(); ok {
		actor.Type = ActorCI
		actor.Name = name
	} else if u, err := user.Current(); err == nil && u.Username != "" {
		actor.Type = ActorUser
		actor.Name = u.Username
	}

	if host, err := os.Hostname(); err == nil {
		actor.Machine = host
	}

	return actor
}

// ciActorName looks across the platform-conventional CI indicators in
// order and returns the first populated actor-like variable found.
func ciActorName() (string, bool) {
	if os.Getenv("CI") == "" && os.Getenv("GITHUB_ACTIONS") == "" && os.Getenv("GITLAB_CI") == "" {
		return "", false
	}
	for _, key := range []string{"GITHUB_ACTOR", "GITLAB_USER_LOGIN", "CI_COMMIT_AUTHOR", "BUILD_USER"} {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
	}
	return "ci", true
}

// InferContext looks up environment, VCS branch/commit, and CI run id
// from a small ordered list of platform-conventional indicators,
// including a field only when its source is found.
func InferContext() Context {
	ctx := Context{}

	for _, key := range []string{"NEVR_ENVIRONMENT", "NODE_ENV", "APP_ENV"} {
		if v := os.Getenv(key); v != "" {
			ctx.Environment = v
			break
		}
	}
	for _, key := range []string{"GITHUB_REF_NAME", "CI_COMMIT_REF_NAME", "GIT_BRANCH"} {
		if v := os.Getenv(key); v != "" {
			ctx.Branch = v
			break
		}
	}
	for _, key := range []string{"GITHUB_SHA", "CI_COMMIT_SHA", "GIT_COMMIT"} {
		if v := os.Getenv(key); v != "" {
			ctx.Commit = v
			break
		}
	}
	for _, key := range []string{"GITHUB_RUN_ID", "CI_PIPELINE_ID", "BUILD_NUMBER"} {
		if v := os.Getenv(key); v != "" {
			ctx.CIRunID = v
			break
		}
	}

	return ctx
}

// MismatchError describes one failed check found during verification.
type MismatchError struct {
	Index   int
	Message string
}

func (m MismatchError) Error() string {
	return fmt.Sprintf("entry %d: %s", m.Index, m.Message)
}

// VerifyResult is the structured outcome of Verify.
type VerifyResult struct {
	Valid   bool
	Entries int
	Errors  []MismatchError
}

// Verify recomputes every entry's hash and checks the previousHash
// chain, returning every mismatch found rather than stopping at the
// first one.
func Verify(entries []Entry) VerifyResult {
	result := VerifyResult{Valid: true, Entries: len(entries)}

	for i, e := range entries {
		if computeHash(e) != e.Hash {
			result.Errors = append(result.Errors, MismatchError{Index: i, Message: "hash does not match entry content"})
		}
		if i > 0 && e.PreviousHash != computeHash(entries[i-1]) {
			result.Errors = append(result.Errors, MismatchError{Index: i, Message: "previousHash does not match prior entry's hash"})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Summary aggregates a slice of entries for reporting.
type Summary struct {
	CountsByAction map[Action]int
	CountsByActor  map[string]int
	AffectedKeys   []string
	FirstTimestamp string
	LastTimestamp  string
}

// Summarize computes aggregate statistics over entries.
func Summarize(entries []Entry) Summary {
	s := Summary{
		CountsByAction: make(map[Action]int),
		CountsByActor:  make(map[string]int),
	}
	keySet := make(map[string]bool)

	for _, e := range entries {
		s.CountsByAction[e.Action]++
		s.CountsByActor[e.Actor.Name]++
		for _, k := range e.Target.SecretKeys {
			keySet[k] = true
		}
		if s.FirstTimestamp == "" || e.Timestamp < s.FirstTimestamp {
			s.FirstTimestamp = e.Timestamp
		}
		if s.LastTimestamp == "" || e.Timestamp > s.LastTimestamp {
			s.LastTimestamp = e.Timestamp
		}
	}

	for k := range keySet {
		s.AffectedKeys = append(s.AffectedKeys, k)
	}
	sort.Strings(s.AffectedKeys)

	return s
}

// Query narrows entries by zero or more criteria; an unset field on
// Query is not applied.
type Query struct {
	Actions       []Action
	ActorContains string
	HasKey        string
	Since         time.Time
	Until         time.Time
	Tail          int
}

// Apply filters entries according to q, applying the tail limit last.
func Apply(entries []Entry, q Query) []Entry {
	var out []Entry

	actionSet := make(map[Action]bool, len(q.Actions))
	for _, a := range q.Actions {
		actionSet[a] = true
	}

	for _, e := range entries {
		if len(actionSet) > 0 && !actionSet[e.Action] {
			continue
		}
		if q.ActorContains != "" && !strings.Contains(strings.ToLower(e.Actor.Name), strings.ToLower(q.ActorContains)) {
			continue
		}
		if q.HasKey != "" && !containsString(e.Target.SecretKeys, q.HasKey) {
			continue
		}
		if !q.Since.IsZero() || !q.Until.IsZero() {
			ts, err := time.Parse(time.RFC3339, e.Timestamp)
			if err != nil {
				continue
			}
			if !q.Since.IsZero() && ts.Before(q.Since) {
				continue
			}
			if !q.Until.IsZero() && ts.After(q.Until) {
				continue
			}
		}
		out = append(out, e)
	}

	if q.Tail > 0 && len(out) > q.Tail {
		out = out[len(out)-q.Tail:]
	}

	return out
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
