package notifications_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/questhub/internal/app/features/notifications"
	notificationstore "github.com/dalemusser/questhub/internal/app/store/notifications"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/questhub/internal/testutil"
	"go.uber.org/zap"
)

type listBody struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

func seed(t *testing.T) (*notifications.Handler, *notificationstore.Store, models.User, models.User, []models.Notification) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := fx.CreateTeacher(ctx, "Tess Teacher", "tess@example.com")
	student := fx.CreateStudent(ctx, "Sam Student", "sam@example.com")
	store := notificationstore.New(db)

	base := time.Now().UTC().Add(-time.Hour)
	var created []models.Notification
	for i, msg := range []string{"first", "second", "third"} {
		n, err := store.Create(ctx, models.Notification{
			SenderID:    student.ID,
			RecipientID: teacher.ID,
			Type:        models.NotifyEvidence,
			Message:     msg,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		created = append(created, n)
	}
	return notifications.NewHandler(db, zap.NewNop()), store, teacher, student, created
}

func TestServeList(t *testing.T) {
	h, _, teacher, student, _ := seed(t)

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/notifications", testutil.AsTestUser(teacher), nil))
	rec.AssertStatus(t, http.StatusOK)

	var got listBody
	rec.DecodeJSON(t, &got)
	if len(got.Notifications) != 3 || got.UnreadCount != 3 {
		t.Fatalf("got %d notifications, %d unread", len(got.Notifications), got.UnreadCount)
	}
	if got.Notifications[0].Message != "third" {
		t.Errorf("newest first: got %q", got.Notifications[0].Message)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/notifications?limit=1", testutil.AsTestUser(teacher), nil))
	rec.DecodeJSON(t, &got)
	if len(got.Notifications) != 1 || got.UnreadCount != 3 {
		t.Errorf("limit=1: got %d notifications, %d unread", len(got.Notifications), got.UnreadCount)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/notifications", testutil.AsTestUser(student), nil))
	rec.DecodeJSON(t, &got)
	if len(got.Notifications) != 0 || got.UnreadCount != 0 {
		t.Errorf("student sees %d notifications", len(got.Notifications))
	}
}

func TestHandleRead(t *testing.T) {
	h, store, teacher, student, created := seed(t)
	target := created[0]

	rec := testutil.NewRecorder()
	r := testutil.NewAuthenticatedRequest(http.MethodPost, "/api/notifications/x/read", testutil.AsTestUser(student), nil)
	h.HandleRead(rec, testutil.WithChiURLParam(r, "notificationID", target.ID.Hex()))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = testutil.NewRecorder()
	r = testutil.NewAuthenticatedRequest(http.MethodPost, "/api/notifications/x/read", testutil.AsTestUser(teacher), nil)
	h.HandleRead(rec, testutil.WithChiURLParam(r, "notificationID", target.ID.Hex()))
	rec.AssertStatus(t, http.StatusNoContent)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := store.CountUnread(ctx, teacher.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}

	rec = testutil.NewRecorder()
	r = testutil.NewAuthenticatedRequest(http.MethodPost, "/api/notifications/x/read", testutil.AsTestUser(teacher), nil)
	h.HandleRead(rec, testutil.WithChiURLParam(r, "notificationID", "nope"))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleReadAll(t *testing.T) {
	h, _, teacher, _, _ := seed(t)

	rec := testutil.NewRecorder()
	h.HandleReadAll(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/api/notifications/read-all", testutil.AsTestUser(teacher), nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"marked":3`)

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/api/notifications?unread=1", testutil.AsTestUser(teacher), nil))
	var got listBody
	rec.DecodeJSON(t, &got)
	if len(got.Notifications) != 0 || got.UnreadCount != 0 {
		t.Errorf("after read-all: %d listed, %d unread", len(got.Notifications), got.UnreadCount)
	}
}

func TestServeList_RequiresSignIn(t *testing.T) {
	h, _, _, _, _ := seed(t)
	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewJSONRequest(http.MethodGet, "/api/notifications", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}
