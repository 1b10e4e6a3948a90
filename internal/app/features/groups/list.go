// internal/app/features/groups/list.go
package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/policy/grouppolicy"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (h *Handler) loadGroup(ctx context.Context, r *http.Request) (models.Group, error) {
	gid, err := shared.IDParam(r, "groupID")
	if err != nil {
		return models.Group{}, err
	}
	g, err := groupstore.New(h.DB).GetByID(ctx, gid)
	if errors.Is(err, groupstore.ErrNotFound) {
		return models.Group{}, apierr.NotFound("group not found")
	}
	return g, err
}

// view attaches the member list to each group.
func (h *Handler) view(ctx context.Context, groups []models.Group) ([]groupView, error) {
	ms := membershipstore.New(h.DB)
	us := userstore.New(h.DB)
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		ids, err := ms.UserIDsByGroup(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		users, err := us.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		members := make([]memberView, len(users))
		for i, u := range users {
			members[i] = viewMember(u)
		}
		out = append(out, groupView{Group: g, Members: members, MemberCount: len(members)})
	}
	return out, nil
}

// ServeList handles GET /api/groups: a teacher's groups, or every group
// for an admin.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	gs := groupstore.New(h.DB)
	var list []models.Group
	if authz.IsAdmin(r) {
		list, err = gs.ListAll(ctx)
	} else {
		list, err = gs.ListByTeacher(ctx, a.ID)
	}
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	views, err := h.view(ctx, list)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]any{"groups": views})
}

// ServeGroup handles GET /api/groups/{groupID}. Members of the group may
// view it as well as its teacher.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.loadGroup(ctx, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !grouppolicy.CanManageGroup(r, g) {
		member, err := membershipstore.New(h.DB).IsMemberOfAny(ctx, []primitive.ObjectID{g.ID}, a.ID)
		if err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
		if !member {
			jsonutil.Error(w, r, h.Log, apierr.Forbidden("you do not have access to this group"))
			return
		}
	}
	views, err := h.view(ctx, []models.Group{g})
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, views[0])
}

// ServeMine handles GET /api/groups/mine. A student without a group gets
// {"group": null}.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	gid, ok, err := membershipstore.New(h.DB).GroupOf(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !ok {
		jsonutil.OK(w, map[string]any{"group": nil})
		return
	}
	g, err := groupstore.New(h.DB).GetByID(ctx, gid)
	if errors.Is(err, groupstore.ErrNotFound) {
		jsonutil.OK(w, map[string]any{"group": nil})
		return
	}
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	views, err := h.view(ctx, []models.Group{g})
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]any{"group": views[0]})
}

// ServeUnassigned handles GET /api/groups/unassigned: active students that
// belong to no group.
func (h *Handler) ServeUnassigned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	students, err := h.unassigned(ctx)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	out := make([]memberView, len(students))
	for i, u := range students {
		out[i] = viewMember(u)
	}
	jsonutil.OK(w, map[string]any{"students": out})
}

func (h *Handler) unassigned(ctx context.Context) ([]models.User, error) {
	assigned, err := membershipstore.New(h.DB).AssignedUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	return userstore.New(h.DB).ActiveStudentsExcept(ctx, assigned)
}
