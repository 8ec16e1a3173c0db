package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/pagination"
	"github.com/hitoshi/todosync/internal/security"
)

// renderPage は一覧の1ページを出力する。
func renderPage(w io.Writer, v pagination.View, s security.TextSanitizer) {
	p := v.Params
	switch {
	case v.Status == model.QueryStatusError:
		fmt.Fprintf(w, "Error loading todos (%s)\n", model.KindOf(v.Err))
		return
	case v.Status.Pending() && !v.Stale:
		fmt.Fprintln(w, "Loading...")
		return
	}

	fmt.Fprintf(w, "page %d/%d  size %d  sort %s  total %d",
		p.Page, v.Page.PageCount, p.PageSize, sortLabel(p.SortDirection), v.Page.Total)
	if v.Stale {
		fmt.Fprint(w, "  (updating)")
	}
	fmt.Fprintln(w)

	if len(v.Page.Todos) == 0 {
		fmt.Fprintln(w, "No todos")
		if v.Page.PageCount > 0 && p.Page > v.Page.PageCount {
			fmt.Fprintf(w, "page %d is past the last page (%d); run 'clamp' to go back\n", p.Page, v.Page.PageCount)
		}
		return
	}
	for _, t := range v.Page.Todos {
		renderTodo(w, t, s)
	}
}

// renderOwnerTodos は所有todoの一覧を出力する。
func renderOwnerTodos(w io.Writer, todos []model.Todo, s security.TextSanitizer) {
	if len(todos) == 0 {
		fmt.Fprintln(w, "No todos")
		return
	}
	for _, t := range todos {
		renderTodo(w, t, s)
	}
}

func renderTodo(w io.Writer, t model.Todo, s security.TextSanitizer) {
	fmt.Fprintf(w, "[%d] %s\n", t.ID, s.Clean(t.Title))
	if desc := strings.TrimSpace(s.Clean(t.Description)); desc != "" {
		for _, line := range strings.Split(desc, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	var stamps []string
	for _, st := range []struct {
		label string
		at    time.Time
	}{
		{"published", t.PublishedAt},
		{"created", t.CreatedAt},
		{"updated", t.UpdatedAt},
	} {
		if st.at.IsZero() {
			continue
		}
		stamps = append(stamps, fmt.Sprintf("%s %s %s", st.label, api.FormatDate(st.at), api.FormatTime(st.at)))
	}
	if len(stamps) > 0 {
		fmt.Fprintf(w, "    %s\n", strings.Join(stamps, " | "))
	}
}

func sortLabel(d model.SortDirection) string {
	if d == model.SortAscending {
		return "oldest"
	}
	return "latest"
}
