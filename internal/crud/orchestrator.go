// Package crud はモーダル単位で作成・編集・削除の操作を調停する。
//
// モーダルは常に1つだけ開いており（None/Add/Edit/ConfirmDelete）、
// 送信中フラグが立っている間は他の操作を受け付けない。
// 変更が成功（HTTP 200）した場合は一覧のリソースを無効化して再取得させる。
// 失敗はログに記録するのみで、モーダルは開いたままとなる。
package crud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/metrics"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/transport"
)

var (
	// ErrInvalidTransition は現在のモーダルでは許可されない操作のエラー。
	ErrInvalidTransition = errors.New("invalid modal transition")
	// ErrSubmitting は送信中に操作が要求された場合のエラー。
	ErrSubmitting = errors.New("mutation in progress")
)

// ModalKind はモーダルの種類。
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalAdd
	ModalEdit
	ModalConfirmDelete
)

// String はモーダルの種類名を返す。
func (k ModalKind) String() string {
	switch k {
	case ModalAdd:
		return "add"
	case ModalEdit:
		return "edit"
	case ModalConfirmDelete:
		return "confirm-delete"
	default:
		return "none"
	}
}

// Modal は開いているモーダル。Edit/ConfirmDeleteの場合のみTargetを持つ。
type Modal struct {
	Kind   ModalKind
	Target model.Todo
}

// State はOrchestratorの状態のスナップショット。
type State struct {
	Modal      Modal
	Form       model.FormState
	Submitting bool
}

// Mutator は認証付きの変更リクエストを送信する。api.Clientが実装する。
type Mutator interface {
	Call(ctx context.Context, method, path string, body []byte) (*transport.Response, error)
	Session() (model.Session, bool)
}

// Invalidator はリソースの無効化を行う。query.Cacheが実装する。
type Invalidator interface {
	Invalidate(resource string)
}

// Orchestrator はモーダルの状態遷移と変更リクエストを管理する。
type Orchestrator struct {
	client    Mutator
	cache     Invalidator
	resources []string
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu    sync.Mutex
	state State
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
// resourcesを省略した場合は、ページネーション付き一覧と所有todo一覧を無効化対象とする。
func NewOrchestrator(client Mutator, cache Invalidator, logger *slog.Logger, m metrics.MetricsCollector, resources ...string) *Orchestrator {
	if len(resources) == 0 {
		resources = []string{api.ResourceTodoList, api.ResourceTodos}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Orchestrator{
		client:    client,
		cache:     cache,
		resources: resources,
		logger:    logger,
		metrics:   m,
	}
}

// State は現在の状態を返す。
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OpenAdd は作成モーダルを開く。他のモーダルが開いている場合はエラー。
func (o *Orchestrator) OpenAdd() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Submitting {
		return ErrSubmitting
	}
	if o.state.Modal.Kind != ModalNone {
		return ErrInvalidTransition
	}
	o.state = State{Modal: Modal{Kind: ModalAdd}}
	return nil
}

// OpenEdit は編集モーダルを開き、フォームに対象の値を設定する。
func (o *Orchestrator) OpenEdit(target model.Todo) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Submitting {
		return ErrSubmitting
	}
	o.state = State{
		Modal: Modal{Kind: ModalEdit, Target: target},
		Form:  model.FormState{Title: target.Title, Description: target.Description},
	}
	return nil
}

// OpenConfirm は削除確認モーダルを開く。
func (o *Orchestrator) OpenConfirm(target model.Todo) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Submitting {
		return ErrSubmitting
	}
	o.state = State{Modal: Modal{Kind: ModalConfirmDelete, Target: target}}
	return nil
}

// Cancel はモーダルを閉じ、フォームの値を破棄する。
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Submitting {
		return ErrSubmitting
	}
	o.state = State{}
	return nil
}

// Submit は作成または編集を送信する。成功した場合はtrueを返す。
// 送信の失敗はエラーとして返さない（ログに記録し、モーダルは開いたまま）。
func (o *Orchestrator) Submit(ctx context.Context, form model.FormState) (bool, error) {
	modal, err := o.begin(form, ModalAdd, ModalEdit)
	if err != nil {
		return false, err
	}

	var (
		op     string
		method string
		path   string
		body   []byte
	)
	if modal.Kind == ModalAdd {
		sess, _ := o.client.Session()
		op, method, path = "create", http.MethodPost, api.CollectionPath
		body, err = api.CreateBody(form, sess.UserID)
	} else {
		op, method, path = "update", http.MethodPut, api.TodoPath(modal.Target.ID)
		body, err = api.UpdateBody(form)
	}
	if err != nil {
		o.finish(op, modal, nil, err)
		return false, nil
	}

	resp, err := o.client.Call(ctx, method, path, body)
	return o.finish(op, modal, resp, err), nil
}

// Remove は削除確認中の対象を削除する。成功した場合はtrueを返す。
func (o *Orchestrator) Remove(ctx context.Context) (bool, error) {
	modal, err := o.begin(model.FormState{}, ModalConfirmDelete)
	if err != nil {
		return false, err
	}
	resp, err := o.client.Call(ctx, http.MethodDelete, api.TodoPath(modal.Target.ID), nil)
	return o.finish("delete", modal, resp, err), nil
}

// begin は送信中フラグを立てる。現在のモーダルがallowedのいずれかでなければエラー。
func (o *Orchestrator) begin(form model.FormState, allowed ...ModalKind) (Modal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Submitting {
		return Modal{}, ErrSubmitting
	}
	ok := false
	for _, k := range allowed {
		if o.state.Modal.Kind == k {
			ok = true
			break
		}
	}
	if !ok {
		return Modal{}, ErrInvalidTransition
	}
	if o.state.Modal.Kind != ModalConfirmDelete {
		o.state.Form = form
	}
	o.state.Submitting = true
	return o.state.Modal, nil
}

// finish は送信結果を反映し、成功かどうかを返す。
// 成功はHTTP 200のみとする。
func (o *Orchestrator) finish(op string, modal Modal, resp *transport.Response, err error) bool {
	success := err == nil && resp != nil && resp.StatusCode == http.StatusOK

	o.mu.Lock()
	if success {
		o.state = State{}
	} else {
		o.state.Submitting = false
	}
	o.mu.Unlock()

	o.metrics.RecordMutation(op, success)

	if !success {
		attrs := []any{
			slog.String("op", op),
			slog.String("modal", modal.Kind.String()),
			slog.Int("todo_id", modal.Target.ID),
		}
		if resp != nil {
			attrs = append(attrs, slog.Int("http_status", resp.StatusCode))
		}
		if err != nil {
			attrs = append(attrs,
				slog.String("kind", string(model.KindOf(err))),
				slog.String("error", err.Error()),
			)
		}
		o.logger.Error("mutation failed", attrs...)
		return false
	}

	for _, r := range o.resources {
		o.cache.Invalidate(r)
	}
	o.logger.Info("mutation succeeded",
		slog.String("op", op),
		slog.Int("todo_id", modal.Target.ID),
	)
	return true
}
