package database

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/result"
	"github.com/brandonyach/teamworksams/pkg/table"
)

func summariesHandler(w http.ResponseWriter, _ *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"database": []any{map[string]any{"id": 4, "name": "Exercise Catalog"}},
		"event":    []any{map[string]any{"id": 1, "name": "Training Log"}},
	})
}

func newServer(t *testing.T, routes map[string]http.HandlerFunc) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("session-header", "s")
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 42, "applicationId": 9},
		})
	})
	mux.HandleFunc("/api/v3/forms/summaries", summariesHandler)
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{URL: srv.URL, Username: "coach", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background()))
	return c
}

func TestGetDatabase(t *testing.T) {
	var payload map[string]any
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/findTableByDatabaseFormId": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			json.NewEncoder(w).Encode(map[string]any{
				"error": false,
				"value": map[string]any{
					"rows": []any{
						[]any{"Back Squat", "Strength"},
						[]any{"Bench Press", "Strength"},
					},
					"ids":         []any{501, 502},
					"indexToName": map[string]any{"0": "exercise", "1": "category"},
				},
			})
		},
	})

	out, err := GetDatabase(context.Background(), c, "Exercise Catalog", 100, 0, Options{})
	require.NoError(t, err)

	assert.EqualValues(t, 4, payload["databaseFormId"])
	assert.EqualValues(t, 100, payload["limit"])
	assert.EqualValues(t, 0, payload["offset"])

	require.Equal(t, 2, out.Len())
	assert.Equal(t, "501", out.Row(0).Get("id").String())
	assert.Equal(t, "Back Squat", out.Row(0).Get("exercise").String())
	assert.Equal(t, "Strength", out.Row(1).Get("category").String())
	assert.Equal(t, "Exercise Catalog", out.Row(1).Get("form_name").String())
}

func TestGetDatabaseRejectsNonDatabaseForm(t *testing.T) {
	c := newServer(t, nil)
	_, err := GetDatabase(context.Background(), c, "Training Log", 100, 0, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a database form")
}

func TestGetDatabaseValidatesPaging(t *testing.T) {
	c := newServer(t, nil)
	ctx := context.Background()

	_, err := GetDatabase(ctx, c, "Exercise Catalog", 0, 0, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")

	_, err = GetDatabase(ctx, c, "Exercise Catalog", 10, -1, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset")
}

func TestInsertDatabaseEntryPerRow(t *testing.T) {
	var payloads []entryEnvelope
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/save": func(w http.ResponseWriter, r *http.Request) {
			var e entryEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
			payloads = append(payloads, e)
			json.NewEncoder(w).Encode(1000 + len(payloads))
		},
	})

	in := table.New("exercise", "category")
	in.Append(table.Row{"exercise": table.String("Back Squat"), "category": table.String("Strength")})
	in.Append(table.Row{"exercise": table.String("Deadlift"), "category": table.String("Strength")})

	report, err := InsertDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{})
	require.NoError(t, err)

	require.Len(t, payloads, 2)
	first := payloads[0].Event
	assert.Equal(t, "0", first.EntryMode)
	assert.Equal(t, "-1", first.ID)
	assert.Equal(t, int64(9), first.ApplicationID)
	assert.Equal(t, int64(4), first.FormID)
	assert.Equal(t, int64(42), first.EnteredByUserID)
	assert.Equal(t, map[string]map[string]string{
		"0": {"exercise": "Back Squat", "category": "Strength"},
	}, first.Rows)

	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, []int64{1001, 1002}, report.IDs())
}

func TestInsertGroupsTableFields(t *testing.T) {
	var payloads []entryEnvelope
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/save": func(w http.ResponseWriter, r *http.Request) {
			var e entryEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
			payloads = append(payloads, e)
			w.WriteHeader(http.StatusOK)
		},
	})

	in := table.New("category", "exercise", "load")
	in.Append(table.Row{
		"category": table.String("Strength"),
		"exercise": table.String("Back Squat"),
		"load":     table.Number(120),
	})
	in.Append(table.Row{
		"category": table.String("Strength"),
		"exercise": table.String("Bench Press"),
		"load":     table.Number(90),
	})
	in.Append(table.Row{
		"category": table.String("Conditioning"),
		"exercise": table.String("Row"),
	})

	report, err := InsertDatabaseEntry(context.Background(), c, in, "Exercise Catalog",
		Options{TableFields: []string{"exercise", "load"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded())

	require.Len(t, payloads, 2)
	strength := payloads[0].Event
	assert.Equal(t, map[string]map[string]string{
		"0": {"category": "Strength", "exercise": "Back Squat", "load": "120"},
		"1": {"exercise": "Bench Press", "load": "90"},
	}, strength.Rows)
	conditioning := payloads[1].Event
	assert.Equal(t, map[string]map[string]string{
		"0": {"category": "Conditioning", "exercise": "Row"},
	}, conditioning.Rows)
}

func TestUpdateDatabaseEntry(t *testing.T) {
	var payloads []entryEnvelope
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/save": func(w http.ResponseWriter, r *http.Request) {
			var e entryEnvelope
			require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
			payloads = append(payloads, e)
			w.WriteHeader(http.StatusOK)
		},
	})

	in := table.New("entry_id", "exercise")
	in.Append(table.Row{"entry_id": table.Int(501), "exercise": table.String("Front Squat")})

	confirmed := 0
	report, err := UpdateDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{
		Confirm: func(count int, form string) bool {
			confirmed = count
			assert.Equal(t, "Exercise Catalog", form)
			return true
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	require.Len(t, payloads, 1)
	e := payloads[0].Event
	assert.Equal(t, "1", e.EntryMode)
	assert.Equal(t, "501", e.ID)
	assert.Equal(t, map[string]map[string]string{"0": {"exercise": "Front Squat"}}, e.Rows)

	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, []int64{501}, report.IDs())
}

func TestUpdateCancelled(t *testing.T) {
	c := newServer(t, nil)

	in := table.New("entry_id", "exercise")
	in.Append(table.Row{"entry_id": table.Int(501), "exercise": table.String("Front Squat")})

	_, err := UpdateDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{
		Confirm: func(int, string) bool { return false },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestUpdateRequiresEntryID(t *testing.T) {
	c := newServer(t, nil)

	in := table.New("exercise")
	in.Append(table.Row{"exercise": table.String("Front Squat")})

	_, err := UpdateDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_id")
}

func TestSaveRejectionBecomesErrorRecord(t *testing.T) {
	calls := 0
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/save": func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				json.NewEncoder(w).Encode(map[string]any{"message": "row limit exceeded"})
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	})

	in := table.New("exercise")
	in.Append(table.Row{"exercise": table.String("Back Squat")})
	in.Append(table.Row{"exercise": table.String("Deadlift")})

	report, err := InsertDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, result.StateError, report.Failures()[0].State)
	assert.Contains(t, report.Failures()[0].Message, "unexpected save response")
	assert.Empty(t, report.Failures()[0].IDs)
}

func TestUpdateRejectionCarriesNoIdentifiers(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/save": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"message": "entry locked"})
		},
	})

	in := table.New("entry_id", "exercise")
	in.Append(table.Row{"entry_id": table.Int(501), "exercise": table.String("Back Squat")})

	report, err := UpdateDatabaseEntry(context.Background(), c, in, "Exercise Catalog", Options{})
	require.NoError(t, err)
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, result.StateError, report.Failures()[0].State)
	assert.Empty(t, report.Failures()[0].IDs)
}

func TestDeleteDatabaseEntry(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/delete": func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.EqualValues(t, 501, payload["id"])
			w.WriteHeader(http.StatusOK)
		},
	})

	require.NoError(t, DeleteDatabaseEntry(context.Background(), c, 501))
}

func TestDeleteDatabaseEntryFailure(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/userdefineddatabase/delete": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"error": true})
		},
	})

	err := DeleteDatabaseEntry(context.Background(), c, 501)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete database entry 501")
}
