package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mypt/mypt/internal/client"
	"github.com/mypt/mypt/internal/config"
	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/logger"
	"github.com/mypt/mypt/internal/metrics"
	"github.com/mypt/mypt/internal/optimistic"
	"github.com/mypt/mypt/internal/session"
	"github.com/mypt/mypt/internal/view"
)

// clientPasswordEnv はclient loginで-passwordを省略した場合に参照する環境変数。
const clientPasswordEnv = "MYPT_PASSWORD"

// ClientRuntime はAPIクライアント側の構成一式。
// セッションはクライアントごとのBadgerディレクトリに永続化される。
type ClientRuntime struct {
	Client  *client.Client
	Session *session.Store
	Runner  *optimistic.Runner

	cfg       *config.ClientConfig
	storage   *session.BadgerStorage
	collector *metrics.Collector
	logger    *slog.Logger
}

// OpenClientRuntime はClientConfigからクライアントの依存関係を組み立てる。
// 使い終わったらCloseでセッションストレージを閉じること。
func OpenClientRuntime(cfg *config.ClientConfig, opts ...client.Option) (*ClientRuntime, error) {
	dir, err := clientSessionDir(cfg.DataDir, cfg.APIURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create client directory: %w", err)
	}

	storage, err := session.OpenBadgerStorage(dir)
	if err != nil {
		return nil, err
	}

	log := logger.Component("client")
	store := session.NewStore(storage,
		session.WithTimeout(cfg.SessionTimeout),
		session.WithLogger(log),
	)
	collector := metrics.NewCollector(prometheus.NewRegistry())

	return &ClientRuntime{
		Client:    client.New(cfg.APIURL, store, append([]client.Option{client.WithLogger(log)}, opts...)...),
		Session:   store,
		Runner:    optimistic.NewRunner(optimistic.NewBanner(cfg.BannerTimeout), log, collector),
		cfg:       cfg,
		storage:   storage,
		collector: collector,
		logger:    log,
	}, nil
}

// clientSessionDir は接続先ごとのセッションディレクトリを返す。
// 同じDataDirでも接続先サーバーが異なればセッションを共有しない。
func clientSessionDir(dataDir, apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q", apiURL)
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(u.Host)
	return filepath.Join(dataDir, "sessions", name), nil
}

// Close はセッションストレージを閉じる。
func (r *ClientRuntime) Close() error {
	return r.storage.Close()
}

// WatchSession はSessionCheckInterval毎にセッションの失効を確認する。
// ctxがキャンセルされるか、セッションが有効でなくなるまでブロックする。
func (r *ClientRuntime) WatchSession(ctx context.Context, onEnded func(session.Status)) {
	w := session.NewWatcher(r.Session, r.cfg.SessionCheckInterval, func(status session.Status) {
		if status == session.StatusExpired {
			r.collector.RecordSessionExpired("client")
		}
		r.logger.Info("client session ended", slog.String("status", status.String()))
		if onEnded != nil {
			onEnded(status)
		}
	})
	w.Run(ctx)
}

// ViewOptions はビュー共通の設定を返す。
func (r *ClientRuntime) ViewOptions() view.Options {
	return view.Options{Runner: r.Runner, Logger: r.logger}
}

// Goals は顧客の目標一覧ビューを返す。
func (r *ClientRuntime) Goals(customerID string) *view.GoalsView {
	return view.NewGoalsView(r.Client, customerID, r.ViewOptions())
}

// Plans は顧客のプラン一覧ビューを返す。
func (r *ClientRuntime) Plans(customerID string) *view.PlansView {
	return view.NewPlansView(r.Client, customerID, r.ViewOptions())
}

// Exercises はエクササイズカタログのビューを返す。
func (r *ClientRuntime) Exercises() *view.ExercisesView {
	return view.NewExercisesView(r.Client, r.ViewOptions())
}

// Messages はユーザーの受信箱と送信箱のビューを返す。
func (r *ClientRuntime) Messages(userID string) *view.MessagesView {
	return view.NewMessagesView(r.Client, userID, r.ViewOptions())
}

// Customers はトレーナーの担当顧客一覧ビューを返す。
func (r *ClientRuntime) Customers(trainerID string) *view.CustomersView {
	return view.NewCustomersView(r.Client, trainerID, r.ViewOptions())
}

// errNotSignedIn はサインインが必要な操作をセッションなしで実行した場合に返される。
var errNotSignedIn = errors.New("not signed in (run `mypt client login` first)")

// runClient はclientサブコマンドを実行する。
// サーバー側の設定（DATABASE_URLなど）は読み込まない。
func runClient(w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("client: missing action (one of %s)", strings.Join(clientActionNames(), ", "))
	}

	logger.SetupDefault(w, slog.LevelInfo)
	cfg, err := config.LoadClient(".env")
	if err != nil {
		return fmt.Errorf("failed to load client config: %w", err)
	}
	logger.SetupDefault(w, cfg.SlogLevel())

	rt, err := OpenClientRuntime(cfg)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runClientAction(ctx, rt, w, args[0], args[1:]); err != nil {
		return fmt.Errorf("client %s: %w", args[0], err)
	}
	return nil
}

// clientAction はclientサブコマンドの1操作。
type clientAction func(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error

var clientActions = map[string]clientAction{
	"login":       clientLogin,
	"logout":      clientLogout,
	"status":      clientStatus,
	"watch":       clientWatch,
	"goals":       clientGoals,
	"add-goal":    clientAddGoal,
	"toggle-goal": clientToggleGoal,
	"clear-goals": clientClearGoals,
}

func clientActionNames() []string {
	names := make([]string, 0, len(clientActions))
	for name := range clientActions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func runClientAction(ctx context.Context, rt *ClientRuntime, w io.Writer, name string, args []string) error {
	action, ok := clientActions[name]
	if !ok {
		return fmt.Errorf("unknown action %q (one of %s)", name, strings.Join(clientActionNames(), ", "))
	}
	return action(ctx, rt, w, args)
}

func clientLogin(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(w)
	email := fs.String("email", "", "account email address")
	password := fs.String("password", "", "password (default $"+clientPasswordEnv+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv(clientPasswordEnv)
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}

	user, err := rt.Client.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Role)
	return nil
}

func clientLogout(ctx context.Context, rt *ClientRuntime, w io.Writer, _ []string) error {
	if err := rt.Client.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "signed out")
	return nil
}

// clientStatus はローカルのセッションを失効判定し、有効であればサーバーに問い合わせる。
func clientStatus(ctx context.Context, rt *ClientRuntime, w io.Writer, _ []string) error {
	status, err := rt.Session.CheckAndExpire()
	if err != nil {
		return err
	}
	if status != session.StatusActive {
		fmt.Fprintf(w, "session: %s\n", status)
		return nil
	}

	user, err := rt.Client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "session: %s\nuser: %s <%s> (%s)\n", status, user.Name, user.Email, user.Role)
	return nil
}

// clientWatch はシグナルを受けるかセッションが失効するまで監視を続ける。
func clientWatch(ctx context.Context, rt *ClientRuntime, w io.Writer, _ []string) error {
	var ended session.Status = session.StatusActive
	rt.WatchSession(ctx, func(status session.Status) { ended = status })
	if ended == session.StatusActive {
		fmt.Fprintln(w, "watch stopped")
		return nil
	}
	fmt.Fprintf(w, "session: %s\n", ended)
	return nil
}

// goalsView はサインイン中のセッションから対象顧客の目標ビューを読み込む。
// -customerを省略した場合はサインイン中のユーザー自身を対象にする。
func goalsView(ctx context.Context, rt *ClientRuntime, fs *flag.FlagSet, args []string) (*view.GoalsView, error) {
	customerID := fs.String("customer", "", "customer id (default: signed-in user)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rec, err := rt.Session.Current()
	if err != nil {
		return nil, err
	}
	if rec == nil || !rt.Session.IsActive() {
		return nil, errNotSignedIn
	}
	if *customerID == "" {
		*customerID = rec.UserID
	}

	v := rt.Goals(*customerID)
	if err := v.Load(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func printGoals(w io.Writer, goals []string) {
	if len(goals) == 0 {
		fmt.Fprintln(w, "no goals")
		return
	}
	for _, g := range goals {
		fmt.Fprintln(w, g)
	}
}

func clientGoals(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("goals", flag.ContinueOnError)
	fs.SetOutput(w)
	v, err := goalsView(ctx, rt, fs, args)
	if err != nil {
		return err
	}
	printGoals(w, formatGoals(v))
	return nil
}

func clientAddGoal(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("add-goal", flag.ContinueOnError)
	fs.SetOutput(w)
	name := fs.String("name", "", "goal name")
	target := fs.String("target", "", "numeric target value")
	v, err := goalsView(ctx, rt, fs, args)
	if err != nil {
		return err
	}

	outcome, err := v.Add(ctx, facade.GoalInput{Name: *name, TargetValue: *target})
	return reportOutcome(w, rt, v, outcome, err)
}

func clientToggleGoal(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("toggle-goal", flag.ContinueOnError)
	fs.SetOutput(w)
	id := fs.String("id", "", "goal id")
	v, err := goalsView(ctx, rt, fs, args)
	if err != nil {
		return err
	}

	outcome, err := v.Toggle(ctx, *id)
	return reportOutcome(w, rt, v, outcome, err)
}

func clientClearGoals(ctx context.Context, rt *ClientRuntime, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("clear-goals", flag.ContinueOnError)
	fs.SetOutput(w)
	v, err := goalsView(ctx, rt, fs, args)
	if err != nil {
		return err
	}

	outcome, err := v.RemoveCompleted(ctx)
	return reportOutcome(w, rt, v, outcome, err)
}

// reportOutcome は楽観的更新の結果と更新後の一覧を出力する。
// 巻き戻した場合はバナーのメッセージも出力する。
func reportOutcome(w io.Writer, rt *ClientRuntime, v *view.GoalsView, outcome optimistic.Outcome, err error) error {
	fmt.Fprintf(w, "outcome: %s\n", outcome)
	if msg := rt.Runner.Banner().Message(); msg != "" {
		fmt.Fprintln(w, msg)
	}
	if err != nil {
		return err
	}
	printGoals(w, formatGoals(v))
	return nil
}

func formatGoals(v *view.GoalsView) []string {
	goals := v.Goals()
	lines := make([]string, 0, len(goals))
	for _, g := range goals {
		mark := " "
		if g.Completed {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s  %s (target %s)", mark, g.ID, g.Name, strconv.FormatFloat(g.TargetValue, 'f', -1, 64)))
	}
	return lines
}
