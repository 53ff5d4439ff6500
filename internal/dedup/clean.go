package dedup

import "context"

// FailedRemoval is a redundant file that could not be deleted.
type FailedRemoval struct {
	Path string
	Err  error
}

// CleanReport summarises a cleanup pass.
type CleanReport struct {
	Removed        []string
	Failed         []FailedRemoval
	BytesReclaimed int64
}

// Clean deletes every member of every group except the survivor.
//
// Groups must come from a completed FindDuplicates call. Deletion is best
// effort: each file is attempted once and a failure never stops the rest of
// the group or later groups. Cancellation is checked between groups; the
// report covers whatever was done before ctx ended.
func (s *Service) Clean(ctx context.Context, groups []*DuplicateGroup) (*CleanReport, error) {
	report := &CleanReport{}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("clean interrupted", "removed", len(report.Removed), "error", err)
			return report, err
		}
		if len(g.Members) < 2 {
			continue
		}

		s.logger.Debug("keeping survivor", "path", g.Survivor().Path(), "digest", g.Digest.String())
		for _, e := range g.Redundant() {
			if err := s.fsmgr.Remove(e.Path()); err != nil {
				report.Failed = append(report.Failed, FailedRemoval{Path: e.Path(), Err: err})
				s.logger.Warn("failed to remove duplicate", "path", e.Path(), "error", err)
				s.observer.RemoveFailed(g, e.Path(), err)
				continue
			}
			report.Removed = append(report.Removed, e.Path())
			report.BytesReclaimed += g.Size
			s.logger.Info("removed duplicate", "path", e.Path(), "survivor", g.Survivor().Path())
			s.observer.Removed(g, e.Path())
		}
	}

	return report, nil
}
