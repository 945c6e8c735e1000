package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/provider/github"
)

// Logical file names inside the environment namespace.
const (
	ongoingTweetsFile  = "ongoing_tweets.json"
	upcomingTweetsFile = "upcoming_tweets.json"
	digestHistoryFile  = "digest_history.json"
	techEvolutionFile  = "tech_evolution.json"
	lifePhasesFile     = "life_phases.json"
	pendingTweetFile   = "pending_tweet.json"
)

// BlobClient is the contents-API surface the store needs.
type BlobClient interface {
	GetFile(ctx context.Context, path string) ([]byte, string, error)
	PutFile(ctx context.Context, path string, content []byte, message, sha string) (string, error)
	DeleteFile(ctx context.Context, path, message, sha string) error
}

// Store provides typed access to the simulation's durable state. Every
// read returns the version token observed alongside the snapshot; every
// read-modify-write carries that token and performs exactly one
// reload-and-retry on conflict.
type Store struct {
	blobs  BlobClient
	env    string
	logger logging.Logger
}

func New(blobs BlobClient, env string, logger logging.Logger) *Store {
	return &Store{blobs: blobs, env: env, logger: logger}
}

func (s *Store) path(name string) string {
	return "data/" + s.env + "/" + name
}

// readJSON loads and decodes a file. A missing file is the bootstrap
// branch: out is left untouched and sha is empty.
func (s *Store) readJSON(ctx context.Context, name string, out any) (string, error) {
	raw, sha, err := s.blobs.GetFile(ctx, s.path(name))
	if errors.Is(err, github.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return sha, nil
}

func (s *Store) writeJSON(ctx context.Context, name string, value any, message, sha string) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	_, err = s.blobs.PutFile(ctx, s.path(name), data, message, sha)
	return err
}

// updateJSON performs a read-modify-write cycle with one reload-and-retry
// on version conflict. mutate receives the raw snapshot (nil when the file
// does not exist) and returns the full replacement value.
func (s *Store) updateJSON(ctx context.Context, name, message string, mutate func(raw []byte) (any, error)) error {
	for attempt := 0; ; attempt++ {
		raw, sha, err := s.blobs.GetFile(ctx, s.path(name))
		if errors.Is(err, github.ErrNotFound) {
			raw, sha = nil, ""
		} else if err != nil {
			return err
		}

		value, err := mutate(raw)
		if err != nil {
			return err
		}
		err = s.writeJSON(ctx, name, value, message, sha)
		if err == nil {
			return nil
		}
		if !errors.Is(err, github.ErrConflict) || attempt >= 1 {
			return err
		}
		s.logger.WithField("file", name).Warn("Version conflict, reloading and retrying write")
	}
}

// Timeline returns the published post log and its version token. An absent
// file yields an empty timeline.
func (s *Store) Timeline(ctx context.Context) ([]TweetRecord, string, error) {
	var records []TweetRecord
	sha, err := s.readJSON(ctx, ongoingTweetsFile, &records)
	if err != nil {
		return nil, "", err
	}
	return records, sha, nil
}

// AppendTweet appends a published record to the timeline. Records already
// present under the same tweet count are left untouched so a replayed cycle
// cannot double-record.
func (s *Store) AppendTweet(ctx context.Context, record TweetRecord) error {
	message := fmt.Sprintf("Add tweet %d", record.TweetCount)
	return s.updateJSON(ctx, ongoingTweetsFile, message, func(raw []byte) (any, error) {
		var records []TweetRecord
		if raw != nil {
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("decode %s: %w", ongoingTweetsFile, err)
			}
		}
		for _, existing := range records {
			if existing.TweetCount == record.TweetCount {
				return records, nil
			}
		}
		return append(records, record), nil
	})
}

// Queue returns the not-yet-published post queue and its version token.
func (s *Store) Queue(ctx context.Context) ([]TweetRecord, string, error) {
	var records []TweetRecord
	sha, err := s.readJSON(ctx, upcomingTweetsFile, &records)
	if err != nil {
		return nil, "", err
	}
	return records, sha, nil
}

// ReplaceQueue atomically replaces the queue contents.
func (s *Store) ReplaceQueue(ctx context.Context, records []TweetRecord) error {
	if records == nil {
		records = []TweetRecord{}
	}
	message := fmt.Sprintf("Replace upcoming tweet queue (%d entries)", len(records))
	return s.updateJSON(ctx, upcomingTweetsFile, message, func([]byte) (any, error) {
		return records, nil
	})
}

// PopQueue removes and returns the queue head, or nil when the queue is
// empty. The head is durably recorded as the pending publish intent before
// the tail write removes it from the queue, so a crash between the two
// writes leaves the post recoverable rather than lost. The tail write
// carries the version token observed at read time.
func (s *Store) PopQueue(ctx context.Context) (*TweetRecord, error) {
	var head *TweetRecord
	err := s.updateJSON(ctx, upcomingTweetsFile, "Pop upcoming tweet queue head", func(raw []byte) (any, error) {
		head = nil
		var records []TweetRecord
		if raw != nil {
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("decode %s: %w", upcomingTweetsFile, err)
			}
		}
		if len(records) == 0 {
			return nil, errEmptyQueue
		}
		popped := records[0]
		if err := s.SetPendingIntent(ctx, popped); err != nil {
			return nil, err
		}
		head = &popped
		return records[1:], nil
	})
	if errors.Is(err, errEmptyQueue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return head, nil
}

var errEmptyQueue = errors.New("queue is empty")

// DigestHistory returns the append-only digest log and its version token.
func (s *Store) DigestHistory(ctx context.Context) ([]Digest, string, error) {
	var history []Digest
	sha, err := s.readJSON(ctx, digestHistoryFile, &history)
	if err != nil {
		return nil, "", err
	}
	return history, sha, nil
}

// AppendDigest appends a digest to the history.
func (s *Store) AppendDigest(ctx context.Context, digest Digest) error {
	message := fmt.Sprintf("Update digest history at tweet %d", digest.Metadata.PostCount)
	return s.updateJSON(ctx, digestHistoryFile, message, func(raw []byte) (any, error) {
		var history []Digest
		if raw != nil {
			if err := json.Unmarshal(raw, &history); err != nil {
				return nil, fmt.Errorf("decode %s: %w", digestHistoryFile, err)
			}
		}
		return append(history, digest), nil
	})
}

// TechEvolution returns the persisted epoch collection and its version
// token. An absent file yields an empty collection.
func (s *Store) TechEvolution(ctx context.Context) (*TechEvolution, string, error) {
	evolution := &TechEvolution{TechTrees: map[string]TechEpoch{}}
	sha, err := s.readJSON(ctx, techEvolutionFile, evolution)
	if err != nil {
		return nil, "", err
	}
	if evolution.TechTrees == nil {
		evolution.TechTrees = map[string]TechEpoch{}
	}
	return evolution, sha, nil
}

// SaveTechEvolution persists the epoch collection under the supplied
// version token, with one reload-and-merge retry on conflict. The merge
// keeps epochs written concurrently by another invocation: epochs are
// forward-only and never rewritten.
func (s *Store) SaveTechEvolution(ctx context.Context, evolution *TechEvolution, sha string) error {
	evolution.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	err := s.writeJSON(ctx, techEvolutionFile, evolution, "Update tech evolution data", sha)
	if err == nil || !errors.Is(err, github.ErrConflict) {
		return err
	}

	s.logger.WithField("file", techEvolutionFile).Warn("Version conflict, merging epoch collections")
	current, currentSHA, err := s.TechEvolution(ctx)
	if err != nil {
		return err
	}
	for year, epoch := range evolution.TechTrees {
		if _, exists := current.TechTrees[year]; !exists {
			current.TechTrees[year] = epoch
		}
	}
	current.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return s.writeJSON(ctx, techEvolutionFile, current, "Update tech evolution data", currentSHA)
}

// PendingIntent returns the persisted publish intent, or nil when none is
// outstanding.
func (s *Store) PendingIntent(ctx context.Context) (*TweetRecord, error) {
	var record *TweetRecord
	if _, err := s.readJSON(ctx, pendingTweetFile, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// SetPendingIntent persists the record the orchestrator is about to
// publish so a crash mid-publish is detectable on resume.
func (s *Store) SetPendingIntent(ctx context.Context, record TweetRecord) error {
	message := fmt.Sprintf("Record publish intent for tweet %d", record.TweetCount)
	return s.updateJSON(ctx, pendingTweetFile, message, func([]byte) (any, error) {
		return record, nil
	})
}

// ClearPendingIntent removes the publish intent once the record is safely
// in the timeline.
func (s *Store) ClearPendingIntent(ctx context.Context) error {
	_, sha, err := s.blobs.GetFile(ctx, s.path(pendingTweetFile))
	if errors.Is(err, github.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	err = s.blobs.DeleteFile(ctx, s.path(pendingTweetFile), "Clear publish intent", sha)
	if errors.Is(err, github.ErrNotFound) {
		return nil
	}
	return err
}

// Initialize creates the simulation's durable files on first run. Existing
// files are never touched.
func (s *Store) Initialize(ctx context.Context, lifePhases any) error {
	initial := []struct {
		name  string
		value any
	}{
		{ongoingTweetsFile, []TweetRecord{}},
		{upcomingTweetsFile, []TweetRecord{}},
		{digestHistoryFile, []Digest{}},
		{techEvolutionFile, &TechEvolution{
			TechTrees:   map[string]TechEpoch{},
			LastUpdated: time.Now().UTC().Format(time.RFC3339),
		}},
		{lifePhasesFile, lifePhases},
	}
	for _, file := range initial {
		_, _, err := s.blobs.GetFile(ctx, s.path(file.name))
		if err == nil {
			continue
		}
		if !errors.Is(err, github.ErrNotFound) {
			return err
		}
		if err := s.writeJSON(ctx, file.name, file.value, "Initialize "+file.name, ""); err != nil {
			return fmt.Errorf("initialize %s: %w", file.name, err)
		}
		s.logger.WithField("file", file.name).Info("Initialized store file")
	}
	return nil
}
