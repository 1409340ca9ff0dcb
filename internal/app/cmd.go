package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はBFFサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はPostgreSQLストレージのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandShop は端末向けのストアフロントクライアントを実行することを示す。
	// 残りの引数はshopのサブコマンドとして解釈する。
	CommandShop Command = "shop"
)

// ErrUnknownCommand はサポート外のサブコマンドが指定されたことを示す。
var ErrUnknownCommand = errors.New("unknown command")

// commands は使用方法の表示順を兼ねる。
var commands = []struct {
	cmd   Command
	usage string
}{
	{CommandServe, "run the storefront BFF (default)"},
	{CommandMigrate, "apply PostgreSQL storage migrations"},
	{CommandHealthcheck, "check /health on SERVER_PORT and exit non-zero when unhealthy"},
	{CommandShop, "browse the catalog and manage the cart from a terminal"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。
// shopのクライアント操作をタイプミスしてサーバーが起動しないよう、サポート外のコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c.cmd) {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("%w %q\n%s", ErrUnknownCommand, args[0], Usage())
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: storefront <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.usage)
	}
	return b.String()
}
