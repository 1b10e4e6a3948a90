// internal/app/features/mastery/importcsv.go
package mastery

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/csvutil"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/system/txn"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxErrorsShown caps the row errors quoted in a rejection message.
const maxErrorsShown = 10

type studentScores struct {
	UserID  primitive.ObjectID `json:"user_id"`
	Name    string             `json:"name"`
	Email   string             `json:"email"`
	Mastery map[string]float64 `json:"mastery"`
}

type importResponse struct {
	Applied  bool            `json:"applied"`
	Rows     int             `json:"rows"`
	Students []studentScores `json:"students"`
}

// HandleImport handles POST /api/users/mastery/import (multipart, field
// "csv"). Rows are "email, subject, score". Scores are merged into each
// student's existing map. The import is all-or-nothing: any bad row or
// unknown student email rejects the whole file. ?dry_run=1 returns the
// preview without writing.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)
	file, _, err := r.FormFile("csv")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("CSV file is too large. Maximum size is 5 MB.", nil))
			return
		}
		jsonutil.Error(w, r, h.Log, apierr.Invalid("CSV file is required.", map[string]string{"csv": "CSV file is required."}))
		return
	}
	defer file.Close()

	parsed, err := csvutil.ParseMasteryCSV(file, csvutil.DefaultParseOptions())
	if err != nil {
		if errors.Is(err, csvutil.ErrTooManyRows) {
			err = apierr.Invalid("CSV file has more than "+strconv.Itoa(csvutil.MaxRows)+" rows.", nil)
		} else {
			err = apierr.Invalid("CSV file could not be parsed: "+err.Error(), nil)
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if parsed.HasErrors() {
		jsonutil.Error(w, r, h.Log, apierr.Invalid(parsed.Summary(maxErrorsShown), nil))
		return
	}
	if len(parsed.Rows) == 0 {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("CSV file has no rows.", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	plan, err := h.plan(ctx, parsed.Rows)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	resp := importResponse{Rows: len(parsed.Rows), Students: plan}
	if paging.Flag(r, "dry_run") {
		jsonutil.OK(w, resp)
		return
	}

	users := userstore.New(h.DB)
	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		for _, s := range plan {
			if err := users.MergeMastery(ctx, s.UserID, s.Mastery); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	h.AuditLog.Admin(ctx, r, audit.EventMasteryUpdated, a.ID, nil, map[string]string{
		"source":   "csv",
		"students": strconv.Itoa(len(plan)),
		"rows":     strconv.Itoa(len(parsed.Rows)),
	})
	h.Log.Info("mastery imported",
		zap.Int("students", len(plan)),
		zap.Int("rows", len(parsed.Rows)),
		zap.String("by", a.ID.Hex()))

	resp.Applied = true
	jsonutil.OK(w, resp)
}

// plan groups rows by student. Every email must belong to an active student.
func (h *Handler) plan(ctx context.Context, rows []csvutil.MasteryRow) ([]studentScores, error) {
	emails := make([]string, 0, len(rows))
	seen := map[string]struct{}{}
	for _, row := range rows {
		if _, ok := seen[row.Email]; !ok {
			seen[row.Email] = struct{}{}
			emails = append(emails, row.Email)
		}
	}

	found, err := userstore.New(h.DB).GetManyByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]models.User, len(found))
	for _, u := range found {
		if u.Role == models.RoleStudent && u.IsActive {
			byEmail[u.Email] = u
		}
	}

	var unknown []string
	out := make(map[string]*studentScores, len(emails))
	for _, row := range rows {
		u, ok := byEmail[row.Email]
		if !ok {
			if _, listed := out[row.Email]; !listed {
				unknown = append(unknown, row.Email)
				out[row.Email] = nil
			}
			continue
		}
		s := out[row.Email]
		if s == nil {
			s = &studentScores{UserID: u.ID, Name: u.FullName, Email: u.Email, Mastery: map[string]float64{}}
			out[row.Email] = s
		}
		s.Mastery[row.Subject] = row.Score
	}
	if len(unknown) > 0 {
		return nil, apierr.Invalid("Import rejected: no active student with email "+strings.Join(unknown, ", ")+".", nil)
	}

	plan := make([]studentScores, 0, len(out))
	for _, s := range out {
		plan = append(plan, *s)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Email < plan[j].Email })
	return plan, nil
}
