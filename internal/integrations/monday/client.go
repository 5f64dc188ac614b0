// Package monday fetches the task catalog from project boards over the
// board service's GraphQL API. Every subitem of every configured board
// becomes one domain.Task.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	pageSize              = 100
	boardConcurrencyLimit = 4
)

// boardNameDecorations are removed from a board name to get the client name.
var boardNameDecorations = []string{"PROPEL - ", " - Acumatica Project", "Upgrade - ", "Managed Support - (CA) "}

type Board struct {
	ID        string
	Name      string
	ShortName string
}

// Catalog is the flattened result of fetching every board. Errors holds one
// message per board that failed; the tasks of the other boards are kept.
type Catalog struct {
	Tasks     []domain.Task `json:"allSubitems"`
	Boards    int           `json:"boards"`
	Errors    []string      `json:"errors"`
	ElapsedMS int64         `json:"elapsed"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	version    string
	logger     *log.Logger
}

func NewClient(httpClient *http.Client, apiURL, token, version string, logger *log.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		token:      token,
		version:    version,
		logger:     logger,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// FetchAll fetches boards concurrently and flattens their subitems. Task
// order follows board order.
func (c *Client) FetchAll(ctx context.Context, boards []Board) Catalog {
	start := time.Now()

	type boardResult struct {
		tasks []domain.Task
		err   error
	}
	results := make([]boardResult, len(boards))

	sem := make(chan struct{}, boardConcurrencyLimit)
	var wg sync.WaitGroup
	for i, b := range boards {
		wg.Add(1)
		go func(idx int, b Board) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			tasks, err := c.FetchBoard(ctx, b)
			results[idx] = boardResult{tasks: tasks, err: err}
		}(i, b)
	}
	wg.Wait()

	out := Catalog{Errors: []string{}, FetchedAt: time.Now().UTC()}
	for i, r := range results {
		if r.err != nil {
			c.logger.Warn("board fetch failed", "board", boards[i].ID, "err", r.err)
			out.Errors = append(out.Errors, fmt.Sprintf("board %s: %v", boards[i].ID, r.err))
			continue
		}
		out.Boards++
		out.Tasks = append(out.Tasks, r.tasks...)
	}
	out.ElapsedMS = time.Since(start).Milliseconds()
	c.logger.Info("boards fetched", "boards", out.Boards, "tasks", len(out.Tasks), "errors", len(out.Errors), "elapsed", time.Since(start))
	return out
}

// FetchBoard walks every page of one board.
func (c *Client) FetchBoard(ctx context.Context, b Board) ([]domain.Task, error) {
	var tasks []domain.Task
	cursor := ""
	for {
		data, err := c.query(ctx, boardQuery(b.ID, cursor))
		if err != nil {
			return nil, err
		}
		board := data.Get("boards.0")
		if !board.Exists() {
			return nil, fmt.Errorf("board %s not found", b.ID)
		}
		client := ClientName(board.Get("name").String())
		board.Get("items_page.items").ForEach(func(_, item gjson.Result) bool {
			parent := item.Get("name").String()
			item.Get("subitems").ForEach(func(_, sub gjson.Result) bool {
				tasks = append(tasks, domain.Task{
					ID:              sub.Get("id").String(),
					Name:            sub.Get("name").String(),
					ParentName:      parent,
					ClientName:      client,
					ClientShortCode: b.ShortName,
					BoardID:         b.ID,
				})
				return true
			})
			return true
		})

		cursor = board.Get("items_page.cursor").String()
		if cursor == "" {
			return tasks, nil
		}
	}
}

// ClientName strips engagement decorations from a board name.
func ClientName(boardName string) string {
	for _, d := range boardNameDecorations {
		boardName = strings.Replace(boardName, d, "", 1)
	}
	return boardName
}

func boardQuery(boardID, cursor string) string {
	page := "limit: " + strconv.Itoa(pageSize)
	if cursor != "" {
		page += ", cursor: " + strconv.Quote(cursor)
	}
	return `{
  boards(ids: [` + strconv.Quote(boardID) + `]) {
    id
    name
    items_page(` + page + `) {
      cursor
      items {
        id
        name
        group { id title }
        subitems { id name }
      }
    }
  }
}`
}

func (c *Client) query(ctx context.Context, q string) (gjson.Result, error) {
	body, err := json.Marshal(map[string]string{"query": q})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshaling query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("API-Version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("board API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("board API: %s", resp.Status)
	}
	if !gjson.ValidBytes(respBody) {
		return gjson.Result{}, fmt.Errorf("board API: invalid JSON response")
	}

	parsed := gjson.ParseBytes(respBody)
	if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		var msgs []string
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return gjson.Result{}, fmt.Errorf("board GraphQL: %s", strings.Join(msgs, ", "))
	}
	return parsed.Get("data"), nil
}
