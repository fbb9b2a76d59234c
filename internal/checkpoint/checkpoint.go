// Package checkpoint snapshots the workspace with git so an agent's file
// edits can be reviewed and rolled back.
package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/zeebo/xxh3"
)

// FileChangeStatus classifies one changed file.
type FileChangeStatus string

const (
	StatusAdded    FileChangeStatus = "ADDED"
	StatusModified FileChangeStatus = "MODIFIED"
	StatusDeleted  FileChangeStatus = "DELETED"
)

// Initial returns the single-letter marker used in change summaries.
func (s FileChangeStatus) Initial() byte {
	switch s {
	case StatusAdded:
		return 'A'
	case StatusDeleted:
		return 'D'
	default:
		return 'M'
	}
}

// FileChange is one changed file relative to the workspace root.
type FileChange struct {
	RelativePath string           `json:"relative_path"`
	AbsolutePath string           `json:"absolute_path"`
	Status       FileChangeStatus `json:"status"`
}

// Checkpoint identifies one workspace snapshot.
type Checkpoint struct {
	WorkspaceFolder string `json:"workspace_folder"`
	CommitHash      string `json:"commit_hash"`
}

// WorkspaceHash returns a stable identifier for the checkpoint's
// workspace folder.
func (c Checkpoint) WorkspaceHash() string {
	return fmt.Sprintf("%016x", xxh3.HashString(c.WorkspaceFolder))
}

// CommitInfo describes a proposed commit of pending changes.
type CommitInfo struct {
	ProjectPath   string       `json:"project_path"`
	CommitMessage string       `json:"commit_message"`
	FileChanges   []FileChange `json:"file_changes"`
}

// GetProjectName returns the last path element of the project.
func (c CommitInfo) GetProjectName() string {
	return filepath.Base(filepath.FromSlash(c.ProjectPath))
}

// Service snapshots and restores one workspace repository.
type Service struct {
	root string
	now  func() time.Time
}

// NewService creates a checkpoint service for the repository at root.
func NewService(root string) *Service {
	return &Service{root: root, now: time.Now}
}

func (s *Service) open() (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpen(s.root)
	if err != nil {
		return nil, nil, fmt.Errorf("open repository %s: %w", s.root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("get worktree: %w", err)
	}
	return repo, wt, nil
}

// LsFiles lists workspace files with pending status, untracked included,
// ignored excluded.
func (s *Service) LsFiles(_ context.Context) ([]string, error) {
	_, wt, err := s.open()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	files := make([]string, 0, len(status))
	for path := range status {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// PendingChanges lists worktree changes against HEAD.
func (s *Service) PendingChanges(_ context.Context) ([]FileChange, error) {
	_, wt, err := s.open()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	changes := make([]FileChange, 0, len(status))
	for path, st := range status {
		var fcStatus FileChangeStatus
		switch {
		case st.Worktree == git.Untracked || st.Staging == git.Added:
			fcStatus = StatusAdded
		case st.Worktree == git.Deleted || st.Staging == git.Deleted:
			fcStatus = StatusDeleted
		case st.Worktree == git.Unmodified && st.Staging == git.Unmodified:
			continue
		default:
			fcStatus = StatusModified
		}
		changes = append(changes, FileChange{
			RelativePath: path,
			AbsolutePath: filepath.ToSlash(filepath.Join(s.root, path)),
			Status:       fcStatus,
		})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].RelativePath < changes[j].RelativePath
	})
	return changes, nil
}

// CreateCheckpoint stages everything and commits, returning the snapshot
// handle. An unchanged workspace still produces a checkpoint.
func (s *Service) CreateCheckpoint(_ context.Context, message string) (Checkpoint, error) {
	_, wt, err := s.open()
	if err != nil {
		return Checkpoint{}, err
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return Checkpoint{}, fmt.Errorf("stage changes: %w", err)
	}

	if message == "" {
		message = "stitch checkpoint"
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "stitch",
			Email: "checkpoint@stitch.invalid",
			When:  s.now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return Checkpoint{}, fmt.Errorf("commit checkpoint: %w", err)
	}

	return Checkpoint{
		WorkspaceFolder: filepath.ToSlash(s.root),
		CommitHash:      hash.String(),
	}, nil
}

// RestoreCheckpoint hard-resets the worktree to a snapshot.
func (s *Service) RestoreCheckpoint(_ context.Context, cp Checkpoint) error {
	_, wt, err := s.open()
	if err != nil {
		return err
	}
	err = wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: plumbing.NewHash(cp.CommitHash),
	})
	if err != nil {
		return fmt.Errorf("reset to checkpoint %s: %w", cp.CommitHash, err)
	}
	return nil
}

// ProposeCommit summarizes pending changes as a commit proposal for the
// links surface.
func (s *Service) ProposeCommit(ctx context.Context, message string) (CommitInfo, error) {
	changes, err := s.PendingChanges(ctx)
	if err != nil {
		return CommitInfo{}, err
	}
	if message == "" {
		message = fmt.Sprintf("Update %d files", len(changes))
	}
	return CommitInfo{
		ProjectPath:   filepath.ToSlash(s.root),
		CommitMessage: message,
		FileChanges:   changes,
	}, nil
}
