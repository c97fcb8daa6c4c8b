package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/echolabs/echocore/internal/storage"
	"github.com/echolabs/echocore/internal/utils"
)

// ChunkAssembler resolves the attempt's stored chunk objects and downloads
// them into the run workspace. An empty result is fatal for the run.
type ChunkAssembler struct {
	Buckets storage.Buckets
}

func (a *ChunkAssembler) Fetch(ctx context.Context, run *Run) ([]string, error) {
	const op = "ChunkAssembler.Fetch"

	store := a.Buckets.ForOrg(run.OrganizationID)

	if run.Attempt <= 0 {
		attempt, err := a.latestAttempt(ctx, store, run)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to resolve latest attempt", err)
		}
		if attempt == 0 {
			return nil, utils.E(utils.CodeNotFound, op, "no attempts with stored data found", nil)
		}
		run.Log.Infof("no attempt provided, using last found attempt: %d", attempt)
		run.Attempt = attempt
	}

	prefix := fmt.Sprintf("%d/respondents/%s/attempt_%d", run.InterviewID, run.RespondentHash, run.Attempt)
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "listing attempt objects failed", err)
	}
	if len(names) == 0 {
		return nil, utils.E(utils.CodeNotFound, op,
			fmt.Sprintf("no records for attempt %d", run.Attempt), nil)
	}

	var downloaded []string
	for _, name := range names {
		if !strings.HasSuffix(name, ".webm") {
			continue
		}
		base := path.Base(name)

		data, err := store.Get(ctx, name)
		if err != nil {
			run.Log.WithError(err).Warnf("download failed for %s, skipping", base)
			continue
		}
		if err := os.WriteFile(run.Workspace.Path(base), data, 0o644); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "writing chunk to workspace failed", err)
		}
		run.Log.Infof("file %s downloaded", base)
		downloaded = append(downloaded, base)
	}

	if len(downloaded) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "zero downloadable chunks", nil)
	}
	return downloaded, nil
}

// latestAttempt scans attempt_<n> prefixes under the respondent folder and
// returns the highest n holding any object, 0 when none exist.
func (a *ChunkAssembler) latestAttempt(ctx context.Context, store storage.ObjectStore, run *Run) (int, error) {
	base := fmt.Sprintf("%d/respondents/%s/", run.InterviewID, run.RespondentHash)
	names, err := store.List(ctx, base)
	if err != nil {
		return 0, err
	}

	latest := 0
	for _, name := range names {
		rest := strings.TrimPrefix(name, base)
		first, _, _ := strings.Cut(rest, "/")
		if !strings.HasPrefix(first, "attempt_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(first, "attempt_"))
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}
