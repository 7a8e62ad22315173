package app

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Command はmyptのサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数がない場合もこれになる。
	CommandServe Command = "serve"
	// CommandWorker は無操作セッションの掃除ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新まで適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateTrainer はトレーナーアカウントを登録する。
	CommandCreateTrainer Command = "create-trainer"
	// CommandClient はAPIクライアントとしてセッションと目標を操作する。
	CommandClient Command = "client"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

// commandSpec はサブコマンドの定義。
type commandSpec struct {
	command Command
	usage   string
	summary string
	// serverConfig がtrueのコマンドはDATABASE_URLなどサーバー側の設定を読み込む。
	serverConfig bool
}

var commandTable = []commandSpec{
	{CommandServe, "serve", "run the HTTP API server (default)", true},
	{CommandWorker, "worker", "sweep idle sessions periodically", true},
	{CommandMigrate, "migrate", "apply database migrations", true},
	{CommandCreateTrainer, "create-trainer -email E -name N [-password P]", "register a trainer account", true},
	{CommandHealthcheck, "healthcheck", "check the local /health endpoint", false},
	{CommandClient, "client <action> [flags]", "API client: login, logout, status, watch, goals, add-goal, toggle-goal, clear-goals", false},
	{CommandHelp, "help", "show this list", false},
}

func lookupCommand(name string) (commandSpec, bool) {
	for _, spec := range commandTable {
		if string(spec.command) == name {
			return spec, true
		}
	}
	return commandSpec{}, false
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if spec, ok := lookupCommand(args[0]); ok {
		return spec.command
	}
	return CommandServe
}

// needsServerConfig はサブコマンドがサーバー側の設定を必要とするかを返す。
func needsServerConfig(cmd Command) bool {
	spec, ok := lookupCommand(string(cmd))
	return !ok || spec.serverConfig
}

// PrintUsage はサブコマンドの一覧を出力する。
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: mypt <command> [args]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, spec := range commandTable {
		fmt.Fprintf(tw, "  %s\t%s\n", spec.usage, spec.summary)
	}
	tw.Flush()
}
