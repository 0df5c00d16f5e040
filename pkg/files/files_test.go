package files

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
)

func userObject(id int, first, last, username string) map[string]any {
	return map[string]any{
		"userId": id, "firstName": first, "lastName": last, "username": username,
	}
}

func usersearchHandler(objs ...map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := make([]any, len(objs))
		for i, o := range objs {
			items[i] = o
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{"results": items}},
		})
	}
}

// uploadHandler accepts multipart uploads and hands out sequential file IDs
// through the status endpoint, the way the real upload processor does.
func uploadHandler(t *testing.T, mux *http.ServeMux, processorKey string) *[]string {
	var uploaded []string
	nextID := 200
	mux.HandleFunc("/x/fileupload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "s", r.FormValue("session-token"))
		assert.Equal(t, processorKey, r.FormValue("processorkey"))

		name := r.FormValue("filename")
		f, _, err := r.FormFile("filedata")
		require.NoError(t, err)
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.NotEmpty(t, content)

		uploaded = append(uploaded, name)
		nextID++
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v2/fileupload/getUploadStatus", func(w http.ResponseWriter, r *http.Request) {
		name := "server_" + uploaded[len(uploaded)-1]
		json.NewEncoder(w).Encode(map[string]any{
			"uploadStatus": map[string]any{"error": false},
			"data": []any{map[string]any{
				"value": map[string]any{"id": nextID, "name": name},
			}},
		})
	})
	return &uploaded
}

func newServer(t *testing.T, register func(mux *http.ServeMux)) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("session-header", "s")
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": 1, "applicationId": 2}})
	})
	if register != nil {
		register(mux)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{URL: srv.URL, Username: "coach", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background()))
	return c
}

func memFsWith(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func TestUploadReference(t *testing.T) {
	u := Upload{FileName: "report.pdf", FileID: 321, ServerName: "report_321.pdf"}
	assert.Equal(t, "321|report_321.pdf", u.Reference())
}

func TestUploadSingleFile(t *testing.T) {
	var uploaded *[]string
	c := newServer(t, func(mux *http.ServeMux) {
		uploaded = uploadHandler(t, mux, processorDocument)
	})
	fs := memFsWith(t, map[string]string{"docs/report.pdf": "pdf bytes"})
	s := NewService(c, fs, nil)

	up, err := s.upload(context.Background(), "docs", "report.pdf", processorDocument)
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf"}, *uploaded)
	assert.Equal(t, int64(201), up.FileID)
	assert.Equal(t, "server_report.pdf", up.ServerName)
}

func TestUploadStatusError(t *testing.T) {
	c := newServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/x/fileupload", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/api/v2/fileupload/getUploadStatus", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"uploadStatus": map[string]any{"error": true, "message": "virus scan failed"},
			})
		})
	})
	fs := memFsWith(t, map[string]string{"docs/report.pdf": "pdf bytes"})
	s := NewService(c, fs, nil)

	_, err := s.upload(context.Background(), "docs", "report.pdf", processorDocument)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "virus scan failed")
}

func TestAttachToEvents(t *testing.T) {
	var imported []map[string]any
	c := newServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/v1/usersearch", usersearchHandler(
			userObject(7, "Alice", "Smith", "asmith"),
		))
		mux.HandleFunc("/api/v1/eventsearch", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"events": []any{map[string]any{
					"id": 900, "formName": "Session Notes",
					"startDate": "02/03/2026", "startTime": "9:00 AM",
					"finishDate": "02/03/2026", "finishTime": "10:00 AM",
					"userId": 7, "enteredByUserId": 1,
					"rows": []any{map[string]any{"row": 0, "pairs": []any{
						map[string]any{"key": "attachment_id", "value": "A-1"},
					}}},
				}},
			})
		})
		mux.HandleFunc("/api/v1/eventsimport", func(w http.ResponseWriter, r *http.Request) {
			var env map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
			imported = append(imported, env)
			json.NewEncoder(w).Encode(map[string]any{
				"state": "SUCCESS", "ids": []any{float64(900)},
			})
		})
		uploadHandler(t, mux, processorDocument)
	})
	fs := memFsWith(t, map[string]string{"docs/notes.pdf": "pdf bytes"})
	s := NewService(c, fs, nil)

	mapping := table.New("username", "file_name", "attachment_id")
	mapping.Append(table.Row{
		"username":      table.String("asmith"),
		"file_name":     table.String("notes.pdf"),
		"attachment_id": table.String("A-1"),
	})
	mapping.Append(table.Row{
		"username":      table.String("bjones"),
		"file_name":     table.String("other.pdf"),
		"attachment_id": table.String("A-2"),
	})

	results, err := s.AttachToEvents(context.Background(), mapping, "docs",
		"username", "Session Notes", "attachment", AttachOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].OK)
	assert.Equal(t, int64(7), results[0].UserID)
	assert.Equal(t, int64(900), results[0].EventID)
	assert.Equal(t, int64(201), results[0].FileID)
	assert.Equal(t, "server_notes.pdf", results[0].ServerName)

	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Reason, "user not found")

	require.Len(t, imported, 1)
	events := imported[0]["events"].([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.EqualValues(t, 900, ev["existingEventId"])
	row := ev["rows"].([]any)[0].(map[string]any)
	pairs := row["pairs"].([]any)
	require.Len(t, pairs, 1)
	pair := pairs[0].(map[string]any)
	assert.Equal(t, "attachment", pair["key"])
	assert.Equal(t, "201|server_notes.pdf", pair["value"])
}

func TestAttachRejectsInvalidFileType(t *testing.T) {
	c := newServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/v1/usersearch", usersearchHandler(
			userObject(7, "Alice", "Smith", "asmith"),
		))
		mux.HandleFunc("/api/v1/eventsearch", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"events": []any{}})
		})
	})
	s := NewService(c, afero.NewMemMapFs(), nil)

	mapping := table.New("username", "file_name", "attachment_id")
	mapping.Append(table.Row{
		"username":      table.String("asmith"),
		"file_name":     table.String("notes.exe"),
		"attachment_id": table.String("A-1"),
	})

	results, err := s.AttachToEvents(context.Background(), mapping, "docs",
		"username", "Session Notes", "attachment", AttachOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "invalid file type '.exe'")
}

func TestAttachWithNoEventsFailsPerFile(t *testing.T) {
	c := newServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/v1/usersearch", usersearchHandler(
			userObject(7, "Alice", "Smith", "asmith"),
		))
		mux.HandleFunc("/api/v1/eventsearch", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"events": []any{}})
		})
	})
	s := NewService(c, afero.NewMemMapFs(), nil)

	mapping := table.New("username", "file_name", "attachment_id")
	mapping.Append(table.Row{
		"username":      table.String("asmith"),
		"file_name":     table.String("notes.pdf"),
		"attachment_id": table.String("A-1"),
	})

	results, err := s.AttachToEvents(context.Background(), mapping, "docs",
		"username", "Session Notes", "attachment", AttachOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "no matching event found")
}

func TestValidateMappingDuplicates(t *testing.T) {
	mapping := table.New("username", "file_name", "attachment_id")
	mapping.Append(table.Row{
		"username":      table.String("asmith"),
		"file_name":     table.String("a.pdf"),
		"attachment_id": table.String("A-1"),
	})
	mapping.Append(table.Row{
		"username":      table.String("bjones"),
		"file_name":     table.String("a.pdf"),
		"attachment_id": table.String("A-2"),
	})

	err := validateMapping(mapping, "username", "file_name", "attachment_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate 'file_name' value: a.pdf")
}

func TestUploadAvatars(t *testing.T) {
	var saved []map[string]any
	c := newServer(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/api/v1/usersearch", usersearchHandler(
			userObject(7, "Alice", "Smith", "asmith"),
		))
		mux.HandleFunc("/api/v2/person/get", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"objects": []any{map[string]any{
					"id": 7, "firstName": "Alice", "lastName": "Smith",
					"username": "asmith",
				}},
			})
		})
		mux.HandleFunc("/api/v2/person/save", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			saved = append(saved, body["person"].(map[string]any))
			json.NewEncoder(w).Encode(map[string]any{"id": 7})
		})
		uploadHandler(t, mux, processorAvatar)
	})
	fs := memFsWith(t, map[string]string{"avatars/asmith.png": "png bytes"})
	s := NewService(c, fs, nil)

	results, err := s.UploadAvatars(context.Background(), nil, "avatars", "username", AvatarOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, "asmith", results[0].Key)
	assert.Equal(t, int64(7), results[0].UserID)
	assert.Equal(t, int64(201), results[0].FileID)

	require.Len(t, saved, 1)
	assert.Equal(t, "201", saved[0]["avatarId"])
}

func TestCreateAvatarMapping(t *testing.T) {
	fs := memFsWith(t, map[string]string{
		"avatars/asmith.png":  "png",
		"avatars/bjones.jpeg": "jpeg",
		"avatars/notes.txt":   "skip",
	})

	mapping, err := CreateAvatarMapping(fs, "avatars", "username")
	require.NoError(t, err)
	require.Equal(t, 2, mapping.Len())
	assert.Equal(t, "asmith", mapping.Row(0).Get("username").String())
	assert.Equal(t, "asmith.png", mapping.Row(0).Get("file_name").String())
	assert.Equal(t, "bjones", mapping.Row(1).Get("username").String())

	_, err = CreateAvatarMapping(afero.NewMemMapFs(), "empty", "username")
	require.Error(t, err)
}

func TestDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/user/loginUser" {
			w.Header().Set("session-header", "s")
			json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": 1}})
			return
		}
		w.Write([]byte("attachment bytes"))
	}))
	t.Cleanup(srv.Close)

	c, err := client.New(client.Config{URL: srv.URL, Username: "coach", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background()))

	fs := afero.NewMemMapFs()
	d := NewDownloader(c, fs, "out")

	require.NoError(t, d.Download(context.Background(), srv.URL+"/files/1", "a.pdf"))
	content, err := afero.ReadFile(fs, "out/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "attachment bytes", string(content))

	// A second download by the same name lands under a deduplicated name.
	require.NoError(t, d.Download(context.Background(), srv.URL+"/files/2", "a.pdf"))
	entries, err := afero.ReadDir(fs, "out")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
