package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/query"
)

// クエリキャッシュのリソース名。
const (
	// ResourceTodos はページネーション付き一覧。
	ResourceTodos = "todos"
	// ResourceTodoList はログインユーザーが所有するtodo一覧。
	ResourceTodoList = "todoList"
)

// OwnerTodosPath はログインユーザーと所有todoを取得するパス。
const OwnerTodosPath = "users/me?populate=todos"

// OwnerTodosRequest は所有todo一覧のクエリを返す。
func OwnerTodosRequest() query.Request {
	return query.Request{
		Resource: ResourceTodoList,
		Path:     OwnerTodosPath,
	}
}

// ListPath は一覧取得のパスを組み立てる。
// パラメータの順序はpage, pageSize, sortで固定する。
func ListPath(p model.ListParams) string {
	return fmt.Sprintf("todos?pagination[page]=%d&pagination[pageSize]=%d&sort=createdAt:%s",
		p.Page, p.PageSize, p.SortDirection)
}

// ListQuery は一覧取得のキャッシュキー用パラメータ文字列を返す。
func ListQuery(p model.ListParams) string {
	return strconv.Itoa(p.Page) + "/" + strconv.Itoa(p.PageSize) + "/" + string(p.SortDirection)
}

// CollectionPath はtodoの作成先パス。
const CollectionPath = "todos"

// TodoPath は個別todoのパスを返す。
func TodoPath(id int) string {
	return "todos/" + strconv.Itoa(id)
}

type createPayload struct {
	Data createData `json:"data"`
}

type createData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	User        []int  `json:"user"`
}

type updatePayload struct {
	Data updateData `json:"data"`
}

type updateData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateBody は作成リクエストのボディを生成する。
func CreateBody(form model.FormState, userID int) ([]byte, error) {
	return json.Marshal(createPayload{Data: createData{
		Title:       form.Title,
		Description: form.Description,
		User:        []int{userID},
	}})
}

// UpdateBody は更新リクエストのボディを生成する。
func UpdateBody(form model.FormState) ([]byte, error) {
	return json.Marshal(updatePayload{Data: updateData{
		Title:       form.Title,
		Description: form.Description,
	}})
}
