package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Workspace is the run's exclusive on-disk scratch directory, keyed by
// respondent hash. It must be removed on both success and failure paths so
// repeated attempts do not exhaust the disk.
type Workspace struct {
	dir string
}

func NewWorkspace(root, respondentHash string) (*Workspace, error) {
	dir := filepath.Join(root, respondentHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string            { return w.dir }
func (w *Workspace) Path(name string) string { return filepath.Join(w.dir, name) }
func (w *Workspace) LogPath() string         { return filepath.Join(w.dir, "process.log") }
func (w *Workspace) VideoPath() string       { return filepath.Join(w.dir, "interview.webm") }

// FixedDir is where repaired chunk copies land before concatenation.
func (w *Workspace) FixedDir() (string, error) {
	dir := filepath.Join(w.dir, "fixed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (w *Workspace) Remove() error { return os.RemoveAll(w.dir) }

// chunkKey orders chunks by (question index, chunk index) ascending.
type chunkKey struct {
	Question int
	Chunk    int
}

var chunkNameRe = regexp.MustCompile(`^(\d+)_(\d+)\.webm$`)

func parseChunkName(name string) (chunkKey, bool) {
	m := chunkNameRe.FindStringSubmatch(name)
	if m == nil {
		return chunkKey{}, false
	}
	q, err1 := strconv.Atoi(m[1])
	c, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return chunkKey{}, false
	}
	return chunkKey{Question: q, Chunk: c}, true
}

// sortedChunkFiles lists the workspace's chunk files in (question, chunk)
// order. Filenames that do not match the q_c.webm pattern are returned
// separately so the caller can log the skip.
func sortedChunkFiles(dir string) (files []string, malformed []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	keys := make(map[string]chunkKey)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".webm" {
			continue
		}
		key, ok := parseChunkName(name)
		if !ok {
			malformed = append(malformed, name)
			continue
		}
		keys[name] = key
		files = append(files, name)
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := keys[files[i]], keys[files[j]]
		if a.Question != b.Question {
			return a.Question < b.Question
		}
		return a.Chunk < b.Chunk
	})
	return files, malformed, nil
}
