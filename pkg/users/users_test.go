package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
)

func userObject(id int, first, last, username, email string) map[string]any {
	return map[string]any{
		"userId":       id,
		"firstName":    first,
		"lastName":     last,
		"username":     username,
		"emailAddress": email,
		"groupsAndRoles": map[string]any{
			"role":          []any{map[string]any{"name": "Athlete"}},
			"athleteGroups": []any{map[string]any{"name": "Sprinters"}},
		},
		"phoneNumbers": []any{
			map[string]any{"countryCode": "+1", "prefix": "555", "number": "0100"},
		},
	}
}

func searchResponse(objs ...map[string]any) map[string]any {
	items := make([]any, len(objs))
	for i, o := range objs {
		items[i] = o
	}
	return map[string]any{
		"results": []any{map[string]any{"results": items}},
	}
}

func newServer(t *testing.T, routes map[string]http.HandlerFunc) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("session-header", "s")
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": 1, "applicationId": 2}})
	})
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

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, (&Filter{Key: "username", Values: []string{"a"}}).Validate())
	assert.Error(t, (&Filter{Key: "shoe_size", Values: []string{"9"}}).Validate())
	assert.Error(t, (&Filter{Key: "email"}).Validate())
}

func TestGetUsersFlattensResponse(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "alice@example.com"),
				userObject(11, "Bob", "Jones", "bjones", "bob@example.com"),
			))
		},
	})

	got, err := GetUsers(context.Background(), c, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "10", got.Get(0, "user_id").String())
	assert.Equal(t, "Alice Smith", got.Get(0, "about").String())
	assert.Equal(t, "Athlete", got.Get(0, "role").String())
	assert.Equal(t, "Sprinters", got.Get(0, "athlete_group").String())
	assert.Equal(t, "+15550100", got.Get(0, "phone_number").String())
}

func TestGetUsersAboutFilterNarrowsClientSide(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			// An about filter searches everyone.
			assert.Empty(t, body["identification"])
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
				userObject(11, "Bob", "Jones", "bjones", "b@example.com"),
			))
		},
	})

	got, err := GetUsers(context.Background(), c,
		&Filter{Key: "about", Values: []string{"alice smith"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "asmith", got.Get(0, "username").String())
}

func TestGetUsersGroupFilterUsesGroupMembers(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/groupmembers": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []any{"Sprinters"}, body["name"])
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
			))
		},
	})

	got, err := GetUsers(context.Background(), c,
		&Filter{Key: "group", Values: []string{"Sprinters"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestGetUsersEmptyGroupFails(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/groupmembers": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
		},
	})

	_, err := GetUsers(context.Background(), c,
		&Filter{Key: "group", Values: []string{"Nobody"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no members found in group")
}

func TestGetUsersColumnSelection(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
			))
		},
	})

	got, err := GetUsers(context.Background(), c, nil,
		Options{Columns: []string{"username", "email", "shoe_size"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"username", "email"}, got.Columns())
}

func TestGetGroups(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/listgroups": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "coach", body["name"])
			json.NewEncoder(w).Encode(map[string]any{"name": []any{"Sprinters", "Throwers"}})
		},
	})

	got, err := GetGroups(context.Background(), c, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "Throwers", got.Get(1, "name").String())
}

func TestResolveUserIDs(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
				userObject(11, "Bob", "Jones", "bjones", "b@example.com"),
			))
		},
	})

	ids, missing, err := ResolveUserIDs(context.Background(), c, "username",
		[]string{"asmith", "bjones", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"asmith": 10, "bjones": 11}, ids)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestResolveUserIDsAboutIsCaseInsensitive(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
			))
		},
	})

	ids, missing, err := ResolveUserIDs(context.Background(), c, "about",
		[]string{"ALICE SMITH"})
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, int64(10), ids["ALICE SMITH"])
}

func TestCreateUser(t *testing.T) {
	var saved []map[string]any
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v2/person/save": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			person := body["person"].(map[string]any)
			saved = append(saved, person)
			if person["username"] == "dupe" {
				json.NewEncoder(w).Encode(map[string]any{
					"__is_rpc_exception__": true,
					"type":                 "DuplicateUser",
					"value":                map[string]any{"detailMessage": "username already taken"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"id": 100 + len(saved)})
		},
	})

	tbl := table.New()
	tbl.Append(table.Row{
		"first_name": table.String("Alice"), "last_name": table.String("Smith"),
		"username": table.String("asmith"), "email": table.String("a@example.com"),
		"dob": table.String("01/01/2000"), "password": table.String("pw"),
		"active": table.Bool(true),
	})
	tbl.Append(table.Row{
		"first_name": table.String("Bob"), "last_name": table.String("Jones"),
		"username": table.String("dupe"), "email": table.String("b@example.com"),
		"dob": table.String("02/02/2000"), "password": table.String("pw"),
	})

	results, err := CreateUser(context.Background(), c, tbl, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results.Succeeded())
	assert.Equal(t, 1, results.Failed())
	assert.True(t, results[0].OK)
	assert.Equal(t, "username already taken", results[1].Reason)

	// Creation always sends the sentinel id.
	assert.Equal(t, "-1", saved[0]["id"])
}

func TestCreateUserMissingColumnFails(t *testing.T) {
	c := newServer(t, nil)
	tbl := table.New()
	tbl.Append(table.Row{"first_name": table.String("Alice")})

	_, err := CreateUser(context.Background(), c, tbl, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestEditUserMapsAndUpdates(t *testing.T) {
	c := newServer(t, map[string]http.HandlerFunc{
		"/api/v1/usersearch": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(searchResponse(
				userObject(10, "Alice", "Smith", "asmith", "a@example.com"),
			))
		},
		"/api/v2/person/get": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"objects": []any{map[string]any{
					"id": 10, "firstName": "Alice", "lastName": "Smith",
					"username": "asmith", "emailAddress": "a@example.com",
				}},
			})
		},
		"/api/v2/person/save": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			person := body["person"].(map[string]any)
			// Existing fields survive the merge.
			assert.Equal(t, "Alice", person["firstName"])
			assert.Equal(t, "new@example.com", person["emailAddress"])
			json.NewEncoder(w).Encode(map[string]any{"id": 10})
		},
	})

	mapping := table.New()
	mapping.Append(table.Row{
		"username": table.String("asmith"),
		"email":    table.String("new@example.com"),
	})
	mapping.Append(table.Row{
		"username": table.String("ghost"),
		"email":    table.String("x@example.com"),
	})

	results, err := EditUser(context.Background(), c, mapping, "username", Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK)
	assert.Equal(t, int64(10), results[0].UserID)
	assert.False(t, results[1].OK)
	assert.Contains(t, results[1].Reason, "user not found")
}
