package api

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/todosync/internal/model"
)

func TestDecodeTodoPage(t *testing.T) {
	body := []byte(`{
		"data": [
			{"id": 3, "attributes": {"title": "買い物", "description": "牛乳",
				"publishedAt": "2024-05-01T10:00:00.000Z",
				"createdAt": "2024-05-01T09:30:15.000Z",
				"updatedAt": "2024-05-02T08:00:00.000Z"}},
			{"id": 2, "attributes": {"title": "掃除", "description": "",
				"publishedAt": null,
				"createdAt": "2024-04-30T12:00:00.000Z",
				"updatedAt": "2024-04-30T12:00:00.000Z"}}
		],
		"meta": {"pagination": {"page": 1, "pageSize": 10, "pageCount": 4, "total": 32}}
	}`)

	got, err := DecodeTodoPage(body)
	if err != nil {
		t.Fatalf("DecodeTodoPage がエラーを返した: %v", err)
	}

	want := model.TodoPage{
		Total:     32,
		PageCount: 4,
		Todos: []model.Todo{
			{
				ID:          3,
				Title:       "買い物",
				Description: "牛乳",
				PublishedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
				CreatedAt:   time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC),
				UpdatedAt:   time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
			},
			{
				ID:        2,
				Title:     "掃除",
				CreatedAt: time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC),
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeTodoPage mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTodoPage_InvalidJSONIsNetworkError(t *testing.T) {
	_, err := DecodeTodoPage([]byte(`<html>`))
	if !errors.Is(err, model.ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestDecodeOwnerTodos(t *testing.T) {
	body := []byte(`{"id": 7, "username": "hanako", "todos": [
		{"id": 1, "title": "a", "description": "b", "createdAt": "2024-05-01T00:00:00.000Z"}
	]}`)

	got, err := DecodeOwnerTodos(body)
	if err != nil {
		t.Fatalf("DecodeOwnerTodos がエラーを返した: %v", err)
	}
	want := []model.Todo{{
		ID:          1,
		Title:       "a",
		Description: "b",
		CreatedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeOwnerTodos mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOwnerTodos_MissingTodosIsEmpty(t *testing.T) {
	got, err := DecodeOwnerTodos([]byte(`{"id": 7}`))
	if err != nil {
		t.Fatalf("DecodeOwnerTodos がエラーを返した: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestFormatDateAndTime(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, 5, 2, 1, 2, 3, 0, jst)

	if got := FormatDate(ts); got != "2024-05-01" {
		t.Errorf("FormatDate = %q, want 2024-05-01", got)
	}
	if got := FormatTime(ts); got != "16:02:03" {
		t.Errorf("FormatTime = %q, want 16:02:03", got)
	}
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("ゼロ値は空文字列であること: %q", got)
	}
}
