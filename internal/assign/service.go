// Package assign applies owner changes to CIs in ServiceNow and records each
// change in the append-only assignment log.
package assign

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

var (
	// ErrInvalidRequest is returned when a required argument is empty.
	ErrInvalidRequest = eris.New("assign: invalid request")
	// ErrAssignmentNotFound is returned when an undo targets an unknown id.
	ErrAssignmentNotFound = eris.New("assign: assignment not found")
	// ErrAlreadyUndone is returned when an assignment already has an undo record.
	ErrAlreadyUndone = eris.New("assign: assignment already undone")
	// ErrNotUndoable is returned for undo records and records whose previous
	// owner has no sys_id.
	ErrNotUndoable = eris.New("assign: assignment cannot be undone")
	// ErrVerifyFailed is returned when the CI does not show the reverted owner
	// after an undo.
	ErrVerifyFailed = eris.New("assign: could not verify reverted owner")
)

// Service coordinates ServiceNow writes with the assignment log.
type Service struct {
	client servicenow.Client
	log    store.AssignmentLog
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source for new records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(client servicenow.Client, log store.AssignmentLog, opts ...Option) *Service {
	s := &Service{
		client: client,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign points ciID's assigned_to at newOwner and appends a history record
// carrying the previous owner so the change can be undone.
func (s *Service) Assign(ctx context.Context, ciID, newOwner string) (*model.Assignment, error) {
	ciID = strings.TrimSpace(ciID)
	newOwner = strings.TrimSpace(newOwner)
	if ciID == "" || newOwner == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "ci id and new owner username are required")
	}

	rec, err := s.client.GetCI(ctx, ciID)
	if err != nil {
		return nil, eris.Wrap(err, "assign: fetch ci")
	}
	current := currentState(rec)

	user, err := s.client.FindUser(ctx, newOwner)
	if err != nil {
		return nil, eris.Wrap(err, "assign: find new owner")
	}

	if err := s.client.UpdateAssignedTo(ctx, ciID, user.SysID); err != nil {
		return nil, eris.Wrap(err, "assign: update ci")
	}

	a := &model.Assignment{
		Timestamp:     s.now(),
		CIID:          ciID,
		CIName:        current.name,
		CIClass:       current.class,
		PreviousOwner: current.owner,
		NewOwner: model.OwnerRef{
			Username:    newOwner,
			DisplayName: user.Name,
			SysID:       user.SysID,
		},
		InstanceURL: s.client.InstanceURL(),
	}
	if err := s.log.AppendAssignment(ctx, a); err != nil {
		// ServiceNow already holds the new owner; surface the logging failure.
		return nil, eris.Wrap(err, "assign: record assignment")
	}

	zap.L().Info("assign: ci reassigned",
		zap.String("assignment_id", a.ID),
		zap.String("ci_id", ciID),
		zap.String("from", a.PreviousOwner.Username),
		zap.String("to", newOwner),
	)
	return a, nil
}

// Undo reverts a previous assignment to its recorded previous owner, checks
// the CI now shows that owner, and appends an undo record.
func (s *Service) Undo(ctx context.Context, assignmentID string) (*model.Assignment, error) {
	assignmentID = strings.TrimSpace(assignmentID)
	if assignmentID == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "assignment id is required")
	}

	orig, err := s.log.GetAssignment(ctx, assignmentID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrAssignmentNotFound, "assignment %s", assignmentID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "assign: load assignment")
	}
	if orig.IsUndo {
		return nil, eris.Wrapf(ErrNotUndoable, "assignment %s is itself an undo", assignmentID)
	}
	if orig.PreviousOwner.SysID == "" {
		return nil, eris.Wrapf(ErrNotUndoable, "assignment %s has no previous owner sys_id", assignmentID)
	}

	prior, err := s.log.UndoOf(ctx, assignmentID)
	switch {
	case err == nil:
		return nil, eris.Wrapf(ErrAlreadyUndone, "assignment %s undone by %s", assignmentID, prior.ID)
	case !eris.Is(err, store.ErrNotFound):
		return nil, eris.Wrap(err, "assign: check undo history")
	}

	if _, err := s.client.GetCI(ctx, orig.CIID); err != nil {
		return nil, eris.Wrap(err, "assign: fetch ci")
	}
	if err := s.client.UpdateAssignedTo(ctx, orig.CIID, orig.PreviousOwner.SysID); err != nil {
		return nil, eris.Wrap(err, "assign: revert ci")
	}

	rec, err := s.client.GetCI(ctx, orig.CIID)
	if err != nil {
		return nil, eris.Wrap(err, "assign: verify revert")
	}
	if got := currentState(rec).owner.SysID; got != orig.PreviousOwner.SysID {
		return nil, eris.Wrapf(ErrVerifyFailed, "ci %s shows owner %q", orig.CIID, got)
	}

	undo := &model.Assignment{
		Timestamp:          s.now(),
		CIID:               orig.CIID,
		CIName:             orig.CIName,
		CIClass:            orig.CIClass,
		PreviousOwner:      orig.NewOwner,
		NewOwner:           orig.PreviousOwner,
		InstanceURL:        s.client.InstanceURL(),
		IsUndo:             true,
		UndoesAssignmentID: orig.ID,
	}
	if err := s.log.AppendAssignment(ctx, undo); err != nil {
		// A concurrent undo of the same assignment won the insert.
		if eris.Is(err, store.ErrDuplicateUndo) {
			return nil, eris.Wrapf(ErrAlreadyUndone, "assignment %s", orig.ID)
		}
		return nil, eris.Wrap(err, "assign: record undo")
	}

	zap.L().Info("assign: assignment undone",
		zap.String("assignment_id", orig.ID),
		zap.String("undo_id", undo.ID),
		zap.String("ci_id", orig.CIID),
		zap.String("restored", orig.PreviousOwner.Username),
	)
	return undo, nil
}

// History lists assignment records newest first.
func (s *Service) History(ctx context.Context, filter store.AssignmentFilter) ([]model.Assignment, error) {
	list, err := s.log.ListAssignments(ctx, filter)
	return list, eris.Wrap(err, "assign: history")
}

type ciState struct {
	name  string
	class string
	owner model.OwnerRef
}

// currentState reads the name, class, and owner of a CI fetched with
// sysparm_display_value=all.
func currentState(rec servicenow.Record) ciState {
	st := ciState{
		name:  ingest.Display(rec["name"]),
		class: ingest.Display(rec["sys_class_name"]),
	}
	if st.name == "" {
		st.name = "Unknown"
	}
	if st.class == "" {
		st.class = "Unknown"
	}
	if field, ok := rec["assigned_to"]; ok && field != nil {
		st.owner = model.OwnerRef{
			SysID:       ingest.Value(field),
			DisplayName: ingest.Display(field),
			Username:    ingest.Display(rec["assigned_to.user_name"]),
		}
		if st.owner.DisplayName == st.owner.SysID {
			st.owner.DisplayName = "Unknown"
		}
	}
	return st
}
