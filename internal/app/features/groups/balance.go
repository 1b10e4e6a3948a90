// internal/app/features/groups/balance.go
package groups

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/grouping"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/system/txn"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleBalancePreview handles POST /api/groups/balance. It proposes
// mastery-balanced teams without saving anything. With no student_ids
// the roster is every unassigned active student.
func (h *Handler) HandleBalancePreview(w http.ResponseWriter, r *http.Request) {
	var in balanceRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var students []models.User
	if len(in.StudentIDs) > 0 {
		rs, err := h.resolveStudents(ctx, in.StudentIDs)
		if err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
		students, err = userstore.New(h.DB).GetMany(ctx, rs.ids)
		if err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
	} else {
		var err error
		students, err = h.unassigned(ctx)
		if err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
	}

	roster := make([]grouping.Student, len(students))
	for i, u := range students {
		roster[i] = grouping.Student{ID: u.ID, Name: u.FullName, Mastery: u.Mastery}
	}
	teams, err := grouping.Balance(roster, in.Size)
	switch {
	case errors.Is(err, grouping.ErrEmptyRoster):
		jsonutil.Error(w, r, h.Log, apierr.Invalid("There are no students to group.", nil))
		return
	case errors.Is(err, grouping.ErrTeamSize):
		jsonutil.Error(w, r, h.Log, apierr.Invalid(err.Error(), map[string]string{"size": err.Error()}))
		return
	case err != nil:
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	jsonutil.OK(w, balanceResponse{Size: in.Size, Teams: teams, Spread: grouping.Spread(teams)})
}

// HandleBalanceCommit handles POST /api/groups/balance/commit. Every team
// becomes a group in one transaction; a student may appear in only one
// team and must not already be grouped.
func (h *Handler) HandleBalanceCommit(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in commitRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	var all []string
	seen := map[string]bool{}
	for _, t := range in.Teams {
		if strings.TrimSpace(t.Name) == "" {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("Every group needs a name.", map[string]string{"teams": "Every group needs a name."}))
			return
		}
		for _, id := range t.MemberIDs {
			id = strings.ToLower(strings.TrimSpace(id))
			if seen[id] {
				jsonutil.Error(w, r, h.Log, apierr.Invalid("A student appears in more than one group.", map[string]string{"teams": "A student appears in more than one group."}))
				return
			}
			seen[id] = true
			all = append(all, id)
		}
	}

	rs, err := h.resolveStudents(ctx, all)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	pid, err := h.bindableProject(ctx, r, in.ProjectID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := h.checkFree(ctx, rs, primitive.NilObjectID); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	var created []models.Group
	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		created = created[:0]
		gs := groupstore.New(h.DB)
		ms := membershipstore.New(h.DB)
		for _, t := range in.Teams {
			teamRoster, err := h.resolveStudents(ctx, t.MemberIDs)
			if err != nil {
				return err
			}
			g, err := gs.Create(ctx, models.Group{Name: strings.TrimSpace(t.Name), TeacherID: a.ID, ProjectID: pid})
			if err != nil {
				return err
			}
			if err := ms.ReplaceForGroup(ctx, g.ID, teamRoster.ids); err != nil {
				return err
			}
			created = append(created, g)
		}
		return nil
	})
	if err != nil {
		jsonutil.Error(w, r, h.Log, conflictErr(err, rs))
		return
	}

	h.Audit.Admin(ctx, r, audit.EventGroupsBalanced, a.ID, nil, map[string]string{
		"groups":   strconv.Itoa(len(created)),
		"students": strconv.Itoa(len(rs.ids)),
	})
	h.Log.Info("balanced groups saved", zap.Int("groups", len(created)), zap.Int("students", len(rs.ids)))

	views, err := h.view(ctx, created)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.Created(w, map[string]any{"groups": views})
}
