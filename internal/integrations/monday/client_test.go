package monday

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/femibol/propel-command-center/internal/logger"
)

const firstPage = `{"data":{"boards":[{"id":"100","name":"PROPEL - Wolverine Ind. - Acumatica Project","items_page":{"cursor":"next-1","items":[
 {"id":"1","name":"Finance","subitems":[{"id":"11","name":"AP Setup"},{"id":"12","name":"GL Import"}]}
]}}]}}`

const secondPage = `{"data":{"boards":[{"id":"100","name":"PROPEL - Wolverine Ind. - Acumatica Project","items_page":{"cursor":null,"items":[
 {"id":"2","name":"Reporting","subitems":[{"id":"21","name":"Payroll Report"}]},
 {"id":"3","name":"Empty Parent","subitems":[]}
]}}]}}`

func newBoardServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "secret-token" || r.Header.Get("API-Version") != "2024-10" {
			http.Error(w, "bad headers", http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || !strings.Contains(payload.Query, "limit: 100") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}

		switch {
		case strings.Contains(payload.Query, `"200"`):
			_, _ = w.Write([]byte(`{"errors":[{"message":"Board not accessible"}]}`))
		case strings.Contains(payload.Query, `"300"`):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.Contains(payload.Query, `cursor: "next-1"`):
			_, _ = w.Write([]byte(secondPage))
		default:
			_, _ = w.Write([]byte(firstPage))
		}
	}))
}

func TestFetchBoardPaginates(t *testing.T) {
	srv := newBoardServer(t)
	defer srv.Close()
	c := NewClient(srv.Client(), srv.URL, "secret-token", "2024-10", logger.Discard())

	tasks, err := c.FetchBoard(context.Background(), Board{ID: "100", ShortName: "WLV"})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "11", tasks[0].ID)
	require.Equal(t, "Finance", tasks[0].ParentName)
	require.Equal(t, "Wolverine Ind.", tasks[0].ClientName)
	require.Equal(t, "WLV", tasks[0].ClientShortCode)
	require.Equal(t, "Payroll Report", tasks[2].Name)
	require.Equal(t, "Reporting", tasks[2].ParentName)
}

func TestFetchAllKeepsGoodBoards(t *testing.T) {
	srv := newBoardServer(t)
	defer srv.Close()
	c := NewClient(srv.Client(), srv.URL, "secret-token", "2024-10", logger.Discard())

	cat := c.FetchAll(context.Background(), []Board{
		{ID: "100", ShortName: "WLV"},
		{ID: "200", ShortName: "PNF"},
		{ID: "300", ShortName: "EPK"},
	})
	require.Equal(t, 1, cat.Boards)
	require.Len(t, cat.Tasks, 3)
	require.Len(t, cat.Errors, 2)
	require.Contains(t, cat.Errors[0], "Board not accessible")
	require.Contains(t, cat.Errors[1], "500")
}

func TestClientName(t *testing.T) {
	tests := map[string]string{
		"PROPEL - Wolverine Ind. - Acumatica Project": "Wolverine Ind.",
		"Upgrade - Econo-Pak":                         "Econo-Pak",
		"Managed Support - (CA) Olympus Power":        "Olympus Power",
		"NAW Support":                                 "NAW Support",
	}
	for in, want := range tests {
		require.Equal(t, want, ClientName(in))
	}
}
