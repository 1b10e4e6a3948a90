package groups_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/questhub/internal/app/features/groups"
	"github.com/dalemusser/questhub/internal/app/system/indexes"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/questhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	h  *groups.Handler
	db *mongo.Database
	fx *testutil.Fixtures

	teacher models.User
	other   models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("indexes.EnsureAll: %v", err)
	}

	fx := testutil.NewFixtures(t, db)
	e := &env{h: groups.NewHandler(db, nil, zap.NewNop()), db: db, fx: fx}
	e.teacher = fx.CreateTeacher(ctx, "Tess Teacher", "tess@example.com")
	e.other = fx.CreateTeacher(ctx, "Otto Other", "otto@example.com")
	return e
}

// student creates an active student with a single recorded mastery score.
func (e *env) student(t *testing.T, name string, score float64) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := e.fx.CreateStudent(ctx, name, strings.ToLower(strings.ReplaceAll(name, " ", "."))+"@example.com")
	if _, err := e.db.Collection("users").UpdateOne(ctx, bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"mastery": bson.M{"math": score}}}); err != nil {
		t.Fatal(err)
	}
	u.Mastery = map[string]float64{"math": score}
	return u
}

func (e *env) groupReq(method string, user models.User, g models.Group, body any) *http.Request {
	r := testutil.NewAuthenticatedRequest(method, "/api/groups/"+g.ID.Hex(), testutil.AsTestUser(user), body)
	return testutil.WithChiURLParam(r, "groupID", g.ID.Hex())
}

func (e *env) memberIDs(t *testing.T, gid primitive.ObjectID) map[primitive.ObjectID]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	cur, err := e.db.Collection("group_memberships").Find(ctx, bson.M{"group_id": gid})
	if err != nil {
		t.Fatal(err)
	}
	var ms []models.GroupMembership
	if err := cur.All(ctx, &ms); err != nil {
		t.Fatal(err)
	}
	out := map[primitive.ObjectID]bool{}
	for _, m := range ms {
		out[m.UserID] = true
	}
	return out
}

func TestHandleCreate(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	a := e.student(t, "Ada Lovelace", 90)
	b := e.student(t, "Ben Franklin", 60)
	p := e.fx.CreateProject(ctx, "Bridges", e.teacher.ID)

	rec := testutil.NewRecorder()
	e.h.HandleCreate(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups", testutil.AsTestUser(e.teacher),
		map[string]any{
			"name":       "  Team Rocket ",
			"member_ids": []string{a.ID.Hex(), b.ID.Hex(), a.ID.Hex()},
			"project_id": p.ID.Hex(),
		}))
	rec.AssertStatus(t, http.StatusCreated)

	var got struct {
		ID          primitive.ObjectID  `json:"id"`
		Name        string              `json:"name"`
		ProjectID   *primitive.ObjectID `json:"project_id"`
		MemberCount int                 `json:"member_count"`
	}
	rec.DecodeJSON(t, &got)
	if got.Name != "Team Rocket" || got.MemberCount != 2 {
		t.Errorf("group = %+v", got)
	}
	if got.ProjectID == nil || *got.ProjectID != p.ID {
		t.Errorf("project_id = %v, want %s", got.ProjectID, p.ID.Hex())
	}
	if m := e.memberIDs(t, got.ID); !m[a.ID] || !m[b.ID] || len(m) != 2 {
		t.Errorf("members = %v", m)
	}
}

func TestHandleCreate_Rejects(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := e.student(t, "Sam Student", 50)
	foreign := e.fx.CreateProject(ctx, "Not Mine", e.other.ID)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"no name", map[string]any{"name": "  ", "member_ids": []string{s.ID.Hex()}}, http.StatusBadRequest},
		{"teacher as member", map[string]any{"name": "X", "member_ids": []string{e.other.ID.Hex()}}, http.StatusBadRequest},
		{"bad id", map[string]any{"name": "X", "member_ids": []string{"nope"}}, http.StatusBadRequest},
		{"foreign project", map[string]any{"name": "X", "project_id": foreign.ID.Hex()}, http.StatusForbidden},
		{"missing project", map[string]any{"name": "X", "project_id": primitive.NewObjectID().Hex()}, http.StatusNotFound},
		{"unknown field", map[string]any{"name": "X", "teacher_id": e.other.ID.Hex()}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.HandleCreate(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups", testutil.AsTestUser(e.teacher), tt.body))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestHandleCreate_StudentAlreadyGrouped(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := e.student(t, "Grace Hopper", 70)
	g := e.fx.CreateGroup(ctx, "First", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, s.ID)

	rec := testutil.NewRecorder()
	e.h.HandleCreate(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups", testutil.AsTestUser(e.teacher),
		map[string]any{"name": "Second", "member_ids": []string{s.ID.Hex()}}))
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "Grace Hopper")

	n, err := e.db.Collection("groups").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("groups = %d, want 1", n)
	}
}

func TestHandleUpdate(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	a := e.student(t, "Ada Lovelace", 90)
	b := e.student(t, "Ben Franklin", 60)
	g := e.fx.CreateGroup(ctx, "Old", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, a.ID)

	t.Run("other teacher", func(t *testing.T) {
		rec := testutil.NewRecorder()
		e.h.HandleUpdate(rec, e.groupReq(http.MethodPut, e.other, g, map[string]any{"name": "Mine now"}))
		rec.AssertStatus(t, http.StatusForbidden)
	})

	t.Run("replaces members", func(t *testing.T) {
		rec := testutil.NewRecorder()
		e.h.HandleUpdate(rec, e.groupReq(http.MethodPut, e.teacher, g,
			map[string]any{"name": "New", "member_ids": []string{a.ID.Hex(), b.ID.Hex()}}))
		rec.AssertStatus(t, http.StatusOK)
		rec.AssertContains(t, `"name":"New"`)
		if m := e.memberIDs(t, g.ID); len(m) != 2 {
			t.Errorf("members = %v, want 2", m)
		}

		rec = testutil.NewRecorder()
		e.h.HandleUpdate(rec, e.groupReq(http.MethodPut, e.teacher, g,
			map[string]any{"name": "New", "member_ids": []string{b.ID.Hex()}}))
		rec.AssertStatus(t, http.StatusOK)
		if m := e.memberIDs(t, g.ID); len(m) != 1 || !m[b.ID] {
			t.Errorf("members = %v, want only %s", m, b.ID.Hex())
		}
	})
}

func TestHandleDelete(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := e.student(t, "Sam Student", 50)
	g := e.fx.CreateGroup(ctx, "Doomed", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, s.ID)

	rec := testutil.NewRecorder()
	e.h.HandleDelete(rec, e.groupReq(http.MethodDelete, e.other, g, nil))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	e.h.HandleDelete(rec, e.groupReq(http.MethodDelete, e.teacher, g, nil))
	rec.AssertStatus(t, http.StatusNoContent)

	if m := e.memberIDs(t, g.ID); len(m) != 0 {
		t.Errorf("memberships left = %d", len(m))
	}
	rec = testutil.NewRecorder()
	e.h.HandleDelete(rec, e.groupReq(http.MethodDelete, e.teacher, g, nil))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeGroup_Access(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	member := e.student(t, "Mia Member", 80)
	outsider := e.student(t, "Oli Outsider", 80)
	g := e.fx.CreateGroup(ctx, "Crew", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, member.ID)

	tests := []struct {
		name string
		user models.User
		want int
	}{
		{"teacher", e.teacher, http.StatusOK},
		{"member", member, http.StatusOK},
		{"outsider", outsider, http.StatusForbidden},
		{"other teacher", e.other, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.ServeGroup(rec, e.groupReq(http.MethodGet, tt.user, g, nil))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestServeMine(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	member := e.student(t, "Mia Member", 80)
	loner := e.student(t, "Lou Loner", 40)
	g := e.fx.CreateGroup(ctx, "Crew", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, member.ID)

	rec := testutil.NewRecorder()
	e.h.ServeMine(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/groups/mine", testutil.AsTestUser(member), nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"name":"Crew"`)

	rec = testutil.NewRecorder()
	e.h.ServeMine(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/groups/mine", testutil.AsTestUser(loner), nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"group":null`)
}

func TestServeUnassigned(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	grouped := e.student(t, "Gus Grouped", 80)
	free := e.student(t, "Fay Free", 40)
	g := e.fx.CreateGroup(ctx, "Crew", e.teacher.ID, nil)
	e.fx.AddMember(ctx, g.ID, grouped.ID)

	rec := testutil.NewRecorder()
	e.h.ServeUnassigned(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/groups/unassigned", testutil.AsTestUser(e.teacher), nil))
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Students []struct {
			ID string `json:"id"`
		} `json:"students"`
	}
	rec.DecodeJSON(t, &got)
	if len(got.Students) != 1 || got.Students[0].ID != free.ID.Hex() {
		t.Errorf("students = %+v, want only %s", got.Students, free.ID.Hex())
	}
}

func TestHandleBalancePreview(t *testing.T) {
	e := newEnv(t)
	scores := []float64{95, 85, 75, 65, 55, 45}
	ids := make([]string, len(scores))
	for i, s := range scores {
		ids[i] = e.student(t, "Student "+string(rune('A'+i)), s).ID.Hex()
	}

	rec := testutil.NewRecorder()
	e.h.HandleBalancePreview(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance", testutil.AsTestUser(e.teacher),
		map[string]any{"student_ids": ids, "size": 3}))
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Size  int `json:"size"`
		Teams []struct {
			Members      []struct{ Score float64 } `json:"members"`
			AverageScore float64                   `json:"average_score"`
		} `json:"teams"`
		Spread float64 `json:"spread"`
	}
	rec.DecodeJSON(t, &got)
	if len(got.Teams) != 2 {
		t.Fatalf("teams = %d, want 2", len(got.Teams))
	}
	// Snake order: team 1 gets 95, 65, 55; team 2 gets 85, 75, 45.
	if got.Teams[0].AverageScore != 215.0/3 || got.Teams[1].AverageScore != 205.0/3 {
		t.Errorf("averages = %v, %v", got.Teams[0].AverageScore, got.Teams[1].AverageScore)
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := e.db.Collection("groups").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("preview saved %d groups", n)
	}
}

func TestHandleBalancePreview_Rejects(t *testing.T) {
	e := newEnv(t)
	s := e.student(t, "Sam Student", 50)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"size too small", map[string]any{"student_ids": []string{s.ID.Hex()}, "size": 1}},
		{"size too large", map[string]any{"student_ids": []string{s.ID.Hex()}, "size": 5}},
		{"teacher in roster", map[string]any{"student_ids": []string{e.other.ID.Hex()}, "size": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			e.h.HandleBalancePreview(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance", testutil.AsTestUser(e.teacher), tt.body))
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestHandleBalancePreview_EmptyUnassignedRoster(t *testing.T) {
	e := newEnv(t)
	rec := testutil.NewRecorder()
	e.h.HandleBalancePreview(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance", testutil.AsTestUser(e.teacher),
		map[string]any{"size": 2}))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "no students")
}

func TestHandleBalanceCommit(t *testing.T) {
	e := newEnv(t)
	a := e.student(t, "Ada", 90)
	b := e.student(t, "Ben", 80)
	c := e.student(t, "Cat", 70)

	rec := testutil.NewRecorder()
	e.h.HandleBalanceCommit(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance/commit", testutil.AsTestUser(e.teacher),
		map[string]any{"teams": []map[string]any{
			{"name": "Group 1", "member_ids": []string{a.ID.Hex(), c.ID.Hex()}},
			{"name": "Group 2", "member_ids": []string{b.ID.Hex()}},
		}}))
	rec.AssertStatus(t, http.StatusCreated)

	var got struct {
		Groups []struct {
			ID          primitive.ObjectID `json:"id"`
			MemberCount int                `json:"member_count"`
		} `json:"groups"`
	}
	rec.DecodeJSON(t, &got)
	if len(got.Groups) != 2 || got.Groups[0].MemberCount != 2 || got.Groups[1].MemberCount != 1 {
		t.Errorf("groups = %+v", got.Groups)
	}

	t.Run("repeated student", func(t *testing.T) {
		d := e.student(t, "Dot", 60)
		rec := testutil.NewRecorder()
		e.h.HandleBalanceCommit(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance/commit", testutil.AsTestUser(e.teacher),
			map[string]any{"teams": []map[string]any{
				{"name": "X", "member_ids": []string{d.ID.Hex()}},
				{"name": "Y", "member_ids": []string{d.ID.Hex()}},
			}}))
		rec.AssertStatus(t, http.StatusBadRequest)
	})

	t.Run("already grouped", func(t *testing.T) {
		rec := testutil.NewRecorder()
		e.h.HandleBalanceCommit(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/groups/balance/commit", testutil.AsTestUser(e.teacher),
			map[string]any{"teams": []map[string]any{
				{"name": "Again", "member_ids": []string{a.ID.Hex()}},
			}}))
		rec.AssertStatus(t, http.StatusConflict)
		rec.AssertContains(t, "Ada")
	})
}
