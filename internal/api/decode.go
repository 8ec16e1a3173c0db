package api

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/todosync/internal/model"
)

type listResponse struct {
	Data []listEntry `json:"data"`
	Meta struct {
		Pagination struct {
			Total     int `json:"total"`
			PageCount int `json:"pageCount"`
		} `json:"pagination"`
	} `json:"meta"`
}

type listEntry struct {
	ID         int           `json:"id"`
	Attributes todoAttribute `json:"attributes"`
}

type todoAttribute struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"publishedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ownerResponse struct {
	Todos []ownerTodo `json:"todos"`
}

type ownerTodo struct {
	ID int `json:"id"`
	todoAttribute
}

// DecodeTodoPage は一覧レスポンスを解析する。
func DecodeTodoPage(body []byte) (model.TodoPage, error) {
	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.TodoPage{}, model.NewDecodeError(err)
	}

	page := model.TodoPage{
		Todos:     make([]model.Todo, 0, len(resp.Data)),
		Total:     resp.Meta.Pagination.Total,
		PageCount: resp.Meta.Pagination.PageCount,
	}
	for _, e := range resp.Data {
		page.Todos = append(page.Todos, e.Attributes.toTodo(e.ID))
	}
	return page, nil
}

// DecodeOwnerTodos はログインユーザーのレスポンスから所有todoを取り出す。
func DecodeOwnerTodos(body []byte) ([]model.Todo, error) {
	var resp ownerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NewDecodeError(err)
	}

	todos := make([]model.Todo, 0, len(resp.Todos))
	for _, t := range resp.Todos {
		todos = append(todos, t.toTodo(t.ID))
	}
	return todos, nil
}

func (a todoAttribute) toTodo(id int) model.Todo {
	return model.Todo{
		ID:          id,
		Title:       a.Title,
		Description: a.Description,
		PublishedAt: a.PublishedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// FormatDate は日付を表示用（YYYY-MM-DD、UTC）に整形する。ゼロ値は空文字列。
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// FormatTime は時刻を表示用（HH:MM:SS、UTC）に整形する。ゼロ値は空文字列。
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("15:04:05")
}
