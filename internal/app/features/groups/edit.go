// internal/app/features/groups/edit.go
package groups

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/system/txn"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// roster is a resolved member list with display names for error messages.
type roster struct {
	ids   []primitive.ObjectID
	names map[primitive.ObjectID]string
}

// resolveStudents parses raw ids, drops repeats and requires every id to
// be an active student.
func (h *Handler) resolveStudents(ctx context.Context, raw []string) (roster, error) {
	rs := roster{names: map[primitive.ObjectID]string{}}
	seen := map[primitive.ObjectID]bool{}
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
		if err != nil {
			return roster{}, apierr.Invalid("bad student id", map[string]string{"member_ids": "Invalid id."})
		}
		if !seen[id] {
			seen[id] = true
			rs.ids = append(rs.ids, id)
		}
	}
	users, err := userstore.New(h.DB).GetMany(ctx, rs.ids)
	if err != nil {
		return roster{}, err
	}
	for _, u := range users {
		if u.Role == models.RoleStudent && u.IsActive {
			rs.names[u.ID] = u.FullName
		}
	}
	for _, id := range rs.ids {
		if _, ok := rs.names[id]; !ok {
			return roster{}, apierr.Invalid(fmt.Sprintf("%s is not an active student", id.Hex()),
				map[string]string{"member_ids": "Every member must be an active student."})
		}
	}
	return rs, nil
}

// checkFree fails with a Conflict naming the first student that already
// belongs to a group other than except.
func (h *Handler) checkFree(ctx context.Context, rs roster, except primitive.ObjectID) error {
	ms := membershipstore.New(h.DB)
	for _, id := range rs.ids {
		gid, ok, err := ms.GroupOf(ctx, id)
		if err != nil {
			return err
		}
		if ok && gid != except {
			return apierr.Conflict(rs.names[id] + " already belongs to another group")
		}
	}
	return nil
}

// conflictErr turns a membership conflict from the unique index into a
// Conflict naming the student.
func conflictErr(err error, rs roster) error {
	var ce *membershipstore.ConflictError
	if errors.As(err, &ce) {
		name := rs.names[ce.UserID]
		if name == "" {
			name = ce.UserID.Hex()
		}
		return apierr.Conflict(name + " already belongs to another group")
	}
	if errors.Is(err, membershipstore.ErrMemberInAnotherGroup) {
		return apierr.Conflict(err.Error())
	}
	return err
}

// bindableProject resolves an optional project id the caller may bind.
func (h *Handler) bindableProject(ctx context.Context, r *http.Request, raw *string) (*primitive.ObjectID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	pid, err := primitive.ObjectIDFromHex(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apierr.Invalid("bad project id", map[string]string{"project_id": "Invalid id."})
	}
	p, err := projectstore.New(h.DB).GetByID(ctx, pid)
	if errors.Is(err, projectstore.ErrNotFound) {
		return nil, apierr.NotFound("project not found")
	}
	if err != nil {
		return nil, err
	}
	if !grouppolicy.CanBindProject(r, p) {
		return nil, apierr.Forbidden("groups can only be bound to your own projects")
	}
	return &p.ID, nil
}

func decodeGroup(w http.ResponseWriter, r *http.Request) (groupRequest, error) {
	var in groupRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		return in, err
	}
	if err := shared.Validate(in); err != nil {
		return in, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apierr.Invalid("Name is required.", map[string]string{"name": "Name is required."})
	}
	return in, nil
}

// HandleCreate handles POST /api/groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	in, err := decodeGroup(w, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rs, err := h.resolveStudents(ctx, in.MemberIDs)
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

	var created models.Group
	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		g, err := groupstore.New(h.DB).Create(ctx, models.Group{Name: in.Name, TeacherID: a.ID, ProjectID: pid})
		if err != nil {
			return err
		}
		created = g
		return membershipstore.New(h.DB).ReplaceForGroup(ctx, g.ID, rs.ids)
	})
	if err != nil {
		jsonutil.Error(w, r, h.Log, conflictErr(err, rs))
		return
	}

	h.Audit.Admin(ctx, r, audit.EventGroupCreated, a.ID, nil, map[string]string{
		"group_id": created.ID.Hex(),
		"name":     created.Name,
	})
	h.Log.Info("group created", zap.String("group_id", created.ID.Hex()), zap.Int("members", len(rs.ids)))

	views, err := h.view(ctx, []models.Group{created})
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.Created(w, views[0])
}

// HandleUpdate handles PUT /api/groups/{groupID}. The body replaces the
// name, project binding and member list.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	in, err := decodeGroup(w, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, err := h.loadGroup(ctx, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !grouppolicy.CanManageGroup(r, g) {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("you do not have access to this group"))
		return
	}
	rs, err := h.resolveStudents(ctx, in.MemberIDs)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	pid, err := h.bindableProject(ctx, r, in.ProjectID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := h.checkFree(ctx, rs, g.ID); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	var updated models.Group
	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		u, err := groupstore.New(h.DB).UpdateInfo(ctx, g.ID, in.Name, pid)
		if err != nil {
			return err
		}
		updated = u
		return membershipstore.New(h.DB).ReplaceForGroup(ctx, g.ID, rs.ids)
	})
	if err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			err = apierr.NotFound("group not found")
		}
		jsonutil.Error(w, r, h.Log, conflictErr(err, rs))
		return
	}

	h.Audit.Admin(ctx, r, audit.EventGroupUpdated, a.ID, nil, map[string]string{
		"group_id": g.ID.Hex(),
		"name":     updated.Name,
	})

	views, err := h.view(ctx, []models.Group{updated})
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, views[0])
}

// HandleDelete handles DELETE /api/groups/{groupID}. Memberships go with
// the group; the students become unassigned.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, err := h.loadGroup(ctx, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !grouppolicy.CanManageGroup(r, g) {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("you do not have access to this group"))
		return
	}

	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		if _, err := membershipstore.New(h.DB).DeleteByGroup(ctx, g.ID); err != nil {
			return err
		}
		return groupstore.New(h.DB).Delete(ctx, g.ID)
	})
	if err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			err = apierr.NotFound("group not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	h.Audit.Admin(ctx, r, audit.EventGroupDeleted, a.ID, nil, map[string]string{
		"group_id": g.ID.Hex(),
		"name":     g.Name,
	})
	h.Log.Info("group deleted", zap.String("group_id", g.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}
