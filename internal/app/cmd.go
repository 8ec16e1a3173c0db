package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandShell は対話シェルを起動することを示す。
	CommandShell Command = "shell"
	// CommandList はページネーション付き一覧を1回表示することを示す。
	CommandList Command = "list"
	// CommandMine はログインユーザーが所有するtodoを表示することを示す。
	CommandMine Command = "mine"
	// CommandGenerate はダミーのtodoを作成することを示す。
	CommandGenerate Command = "generate"
	// CommandLogin は外部で取得したトークンをセッションとして保存することを示す。
	CommandLogin Command = "login"
	// CommandLogout は保存されたセッションを削除することを示す。
	CommandLogout Command = "logout"
	// CommandHealthcheck はステータスエンドポイントへのヘルスチェックを実行することを示す。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示することを示す。
	CommandHelp Command = "help"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandShell、サポート外のコマンドの場合はCommandHelpを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandShell
	}

	switch args[0] {
	case "shell":
		return CommandShell
	case "list", "ls":
		return CommandList
	case "mine":
		return CommandMine
	case "generate":
		return CommandGenerate
	case "login":
		return CommandLogin
	case "logout":
		return CommandLogout
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandHelp
	}
}

// commandArgs はサブコマンド名を除いた引数を返す。
func commandArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return args[1:]
}

const usage = `Usage: todosync <command> [flags]

Commands:
  shell                  対話シェルを起動する（既定）
  list [flags]           一覧を表示する (--page, --page-size, --sort)
  mine                   自分のtodoを表示する
  generate [--count N]   ダミーのtodoを作成する
  login --token T --user ID
                         取得済みのトークンを保存する
  logout                 保存したセッションを削除する
  healthcheck [--addr A] ステータスエンドポイントを確認する
`
