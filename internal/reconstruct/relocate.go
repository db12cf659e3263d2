package reconstruct

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"splice/internal/concat"
	"splice/internal/fileutil"
	"splice/internal/loudness"
	"splice/internal/services"
	"splice/internal/session"
)

var moveFile = fileutil.MoveFile

// relocation holds every destination for one session's files.
type relocation struct {
	sessionRoot  string
	originals    []string
	originalsDir string
	pmPath       string
	pmCuePath    string
	emPath       string
	emCuePath    string
}

func (o *Orchestrator) planRelocation(s *session.DiscSession, pmName, emName string) relocation {
	pmPath := filepath.Join(o.opts.PreservationDir, pmName)
	emPath := filepath.Join(o.opts.EditDir, emName)
	return relocation{
		sessionRoot:  s.Root,
		originals:    s.Artifacts,
		originalsDir: filepath.Join(o.opts.OriginalsDir, s.ID()),
		pmPath:       pmPath,
		pmCuePath:    concat.CuePathFor(pmPath),
		emPath:       emPath,
		emCuePath:    concat.CuePathFor(emPath),
	}
}

// checkFree fails when any destination already exists, before any work is
// done for the session.
func (p relocation) checkFree(withEdit bool) error {
	targets := []string{p.pmPath, p.pmCuePath}
	if withEdit {
		targets = append(targets, p.emPath, p.emCuePath)
	}
	for _, src := range p.originals {
		targets = append(targets, filepath.Join(p.originalsDir, filepath.Base(src)))
	}
	for _, target := range targets {
		if _, err := os.Lstat(target); err == nil {
			return services.Wrap(services.ErrIOFailure, "reconstruct", "check destinations",
				fmt.Sprintf("%s already exists", target), os.ErrExist)
		} else if !errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrIOFailure, "reconstruct", "check destinations", target, err)
		}
	}
	return nil
}

// relocate moves the masters into their trees and then the session's
// original files under originals/<id>/. Sources are moved, never deleted.
// When a move fails, the moves already made are undone so a re-run finds
// every destination free.
func (p relocation) relocate(master *concat.Master, edit *loudness.EditMaster) error {
	moves := [][2]string{
		{master.Path, p.pmPath},
		{master.CuePath, p.pmCuePath},
	}
	if edit != nil {
		moves = append(moves,
			[2]string{edit.Path, p.emPath},
			[2]string{concat.CuePathFor(edit.Path), p.emCuePath},
		)
	}
	for _, src := range p.originals {
		moves = append(moves, [2]string{src, filepath.Join(p.originalsDir, filepath.Base(src))})
	}
	for i, m := range moves {
		if err := moveFile(m[0], m[1]); err != nil {
			err = errors.Join(err, p.undo(moves[:i]))
			return services.Wrap(services.ErrIOFailure, "reconstruct", "relocate", m[0], err)
		}
	}
	// Only succeeds when nothing else was left behind.
	_ = os.Remove(p.sessionRoot)
	return nil
}

// undo reverses completed moves, newest first.
func (p relocation) undo(done [][2]string) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		if err := moveFile(done[i][1], done[i][0]); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", done[i][0], err))
		}
	}
	// Left only if something could not be restored.
	_ = os.Remove(p.originalsDir)
	return errors.Join(errs...)
}
