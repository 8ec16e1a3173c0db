package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/hitoshi/todosync/internal/model"
)

// DefaultKey はセッションレコードを保存する固定キー。
const DefaultKey = "loggedInUser"

// record は永続化されるセッションレコードの形式。
type record struct {
	JWT  string `json:"jwt"`
	User struct {
		ID int `json:"id"`
	} `json:"user"`
}

// FileStore はJSONファイル内の固定キーにセッションレコードを保存する。
// ファイルはキーからレコードへのマップで、他のキーの値は保持される。
// Currentは呼び出しごとにファイルを読み直す。
type FileStore struct {
	path   string
	key    string
	logger *slog.Logger
}

// NewFileStore はFileStoreの新しいインスタンスを生成する。
// keyが空の場合はDefaultKeyを使用する。
func NewFileStore(path, key string, logger *slog.Logger) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, key: key, logger: logger}
}

// Path は保存先ファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

// Current はProviderインターフェースを実装する。
// レコードがない、または解析できない場合は匿名として扱う。
func (s *FileStore) Current() (model.Session, bool) {
	entries, err := s.load()
	if err != nil {
		s.logger.Warn("failed to read session record; treating as anonymous",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return model.Session{}, false
	}

	raw, ok := entries[s.key]
	if !ok {
		return model.Session{}, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("session record is not parseable; treating as anonymous",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return model.Session{}, false
	}

	sess := model.Session{Token: StripBearer(rec.JWT), UserID: rec.User.ID}
	return sess, sess.Authenticated()
}

// Save はセッションレコードを書き込む。
// ディレクトリは0700、ファイルは0600で作成する。
func (s *FileStore) Save(sess model.Session) error {
	sess.Token = StripBearer(sess.Token)
	if sess.Token == "" {
		return fmt.Errorf("empty token")
	}

	entries, err := s.load()
	if err != nil {
		// 壊れたファイルは上書きする
		entries = map[string]json.RawMessage{}
	}

	var rec record
	rec.JWT = sess.Token
	rec.User.ID = sess.UserID

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	entries[s.key] = b

	return s.write(entries)
}

// Delete はセッションレコードを削除する。
// 他のキーが残っていない場合はファイル自体を削除する。
func (s *FileStore) Delete() error {
	entries, err := s.load()
	if err != nil {
		if removeErr := os.Remove(s.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", removeErr)
		}
		return nil
	}

	if _, ok := entries[s.key]; !ok {
		return nil
	}
	delete(entries, s.key)

	if len(entries) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return s.write(entries)
}

func (s *FileStore) load() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return entries, nil
}

func (s *FileStore) write(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	// atomic.WriteFile は新規ファイルのパーミッションを設定しない
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}
	return nil
}
