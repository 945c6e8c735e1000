// Package audit writes per-attempt prompt/response transcripts to local
// files so failed generations can be inspected after the fact. Auditing is
// best-effort: a failed write never fails the generation that produced it.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/logging"
)

// Recorder persists generation transcripts under logs/<env>/<component>/.
type Recorder struct {
	root   string
	env    string
	logger logging.Logger
}

func NewRecorder(root, env string, logger logging.Logger) *Recorder {
	if root == "" {
		root = "logs"
	}
	return &Recorder{root: root, env: env, logger: logger}
}

// Record writes one prompt/response pair for a component attempt and
// returns the transcript path. The response is recorded before any
// validation so malformed output is never lost.
func (r *Recorder) Record(component, system, user, response string) string {
	if r == nil {
		return ""
	}
	dir := filepath.Join(r.root, r.env, component)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.logger.WithField("dir", dir).WithError(err).Warn("Audit directory creation failed")
		return ""
	}

	id := uuid.New().String()[:8]
	name := fmt.Sprintf("%s_%s.log", time.Now().UTC().Format("20060102T150405"), id)
	path := filepath.Join(dir, name)

	body := fmt.Sprintf("=== SYSTEM ===\n%s\n\n=== USER ===\n%s\n\n=== RESPONSE ===\n%s\n", system, user, response)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		r.logger.WithField("path", path).WithError(err).Warn("Audit write failed")
		return ""
	}
	return path
}
