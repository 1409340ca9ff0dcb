// Package shop は端末からストアフロントBFFを操作するクライアント（storefront shop）を提供する。
//
// カートとログインセッションはストレージ（STORAGE_URL）に保存し、コマンドの実行をまたいで引き継ぐ。
// 各コマンドは対応するページのパスでルートガードを評価し、画面と同じ規則でログインを要求する。
package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/client"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/storage"
	"github.com/hitoshi/storefront/internal/token"
	"github.com/spf13/cobra"
)

// SessionKey はログインセッションのCookieを保存するストレージのキー。
const SessionKey = "session"

// DefaultAPIURL はBFFのデフォルトURL。
const DefaultAPIURL = "http://localhost:8080"

// pageAnnotation はコマンドに対応するページのパスを持つアノテーションのキー。
const pageAnnotation = "page"

// ErrLoginRequired はログインが必要なコマンドを未ログインで実行したことを示す。
var ErrLoginRequired = errors.New("login required: run 'storefront shop login <username>'")

// Options はshopコマンドの入出力。
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Getenv は環境変数の読み取りに使う。nilの場合はos.Getenv。
	Getenv func(string) string
}

// shell は1回のコマンド実行の状態を保持する。
type shell struct {
	opts Options

	apiURL     string
	storageURL string
	noColor    bool

	store    storage.Store
	client   *client.Client
	cart     *cart.Store
	notifier *cart.Notifier
	paint    palette

	sessionExpired bool
}

// Run はargsをshopのサブコマンドとして実行する。
// 終了時にセッションを保存し、ストレージを閉じる。
func Run(ctx context.Context, args []string, opts Options) error {
	sh := newShell(opts)
	root := sh.command()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if sh.sessionExpired && err != nil {
		err = fmt.Errorf("session expired, log in again with 'storefront shop login': %w", err)
	}
	if cerr := sh.close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newShell(opts Options) *shell {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	return &shell{opts: opts}
}

func (sh *shell) command() *cobra.Command {
	root := &cobra.Command{
		Use:               "shop",
		Short:             "Browse products and manage your cart from the terminal",
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: sh.setup,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(sh.opts.Stdout)
	root.SetErr(sh.opts.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&sh.apiURL, "api", envOr(sh.opts.Getenv, "STOREFRONT_API_URL", DefaultAPIURL), "storefront BFF base URL")
	flags.StringVar(&sh.storageURL, "storage", sh.opts.Getenv("STORAGE_URL"), "storage URL for the cart and session (default: SQLite file in the user config dir)")
	flags.BoolVar(&sh.noColor, "no-color", sh.opts.Getenv("NO_COLOR") != "", "disable colored output")

	root.AddCommand(
		sh.loginCmd(),
		sh.logoutCmd(),
		sh.meCmd(),
		sh.productsCmd(),
		sh.productCmd(),
		sh.categoriesCmd(),
		sh.addCmd(),
		sh.cartCmd(),
		sh.removeCmd(),
		sh.setCmd(),
		sh.clearCmd(),
	)
	return root
}

// setup はストレージとクライアントを開き、保存済みのセッションとカートを復元する。
// その後、コマンドのページに対してルートガードを評価する。
func (sh *shell) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sh.paint = newPalette(!sh.noColor)

	storageURL := sh.storageURL
	if storageURL == "" {
		def, err := defaultStorageURL()
		if err != nil {
			return err
		}
		storageURL = def
	}
	store, err := storage.Open(ctx, storageURL)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	sh.store = store

	c, err := client.New(sh.apiURL, client.Options{
		Logger: sh.opts.Logger,
		Navigator: client.NavigatorFunc(func(string) {
			sh.sessionExpired = true
		}),
	})
	if err != nil {
		return err
	}
	sh.client = c
	sh.client.RestoreSession(sh.loadSession(ctx))

	sh.cart = cart.NewStore(store, sh.opts.Logger)
	sh.cart.Hydrate(ctx)
	sh.notifier = cart.NewNotifier(store, sh.opts.Logger)

	return sh.guard(cmd)
}

// guard はコマンドのページをルートガードで判定する。
func (sh *shell) guard(cmd *cobra.Command) error {
	page, ok := cmd.Annotations[pageAnnotation]
	if !ok {
		return nil
	}
	switch guard.Decide(page, sh.hasToken()) {
	case guard.RedirectToLogin:
		return ErrLoginRequired
	case guard.RedirectToProducts:
		return errors.New("already logged in: run 'storefront shop logout' first")
	default:
		return nil
	}
}

func (sh *shell) hasToken() bool {
	for _, c := range sh.client.Session() {
		if c.Name == token.AccessTokenCookie && c.Value != "" {
			return true
		}
	}
	return false
}

func (sh *shell) loadSession(ctx context.Context) []client.SessionCookie {
	data, err := sh.store.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			sh.opts.Logger.Warn("failed to read session", slog.String("error", err.Error()))
		}
		return nil
	}
	var cookies []client.SessionCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		sh.opts.Logger.Warn("discarding malformed session", slog.String("error", err.Error()))
		return nil
	}
	return cookies
}

// close は現在のセッションを保存してストレージを閉じる。
// Cookieが残っていない場合（ログアウト後など）は保存済みのセッションを削除する。
func (sh *shell) close(ctx context.Context) error {
	if sh.store == nil {
		return nil
	}
	defer sh.store.Close()
	if sh.client == nil {
		return nil
	}

	cookies := sh.client.Session()
	if len(cookies) == 0 {
		if err := sh.store.Delete(ctx, SessionKey); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := sh.store.Set(ctx, SessionKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// defaultStorageURL はユーザー設定ディレクトリ配下のSQLiteファイルを指すURLを返す。
func defaultStorageURL() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir, set --storage or STORAGE_URL: %w", err)
	}
	dir = filepath.Join(dir, "storefront")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return "sqlite://" + filepath.ToSlash(filepath.Join(dir, "shop.db")), nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func page(path string) map[string]string {
	return map[string]string{pageAnnotation: path}
}
