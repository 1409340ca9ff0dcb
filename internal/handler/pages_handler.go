package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

const indexFile = "index.html"

// PagesHandler は画面のビルド成果物を配信する。
// 存在しないパスはクライアント側ルーティングに任せるためindex.htmlを返す。
type PagesHandler struct {
	dir        string
	fileServer http.Handler
}

// NewPagesHandler はdirを配信ルートとするPagesHandlerを生成する。
func NewPagesHandler(dir string) *PagesHandler {
	return &PagesHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

// ServeHTTP はhttp.Handlerを実装する。
func (h *PagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		middleware.WriteErrorResponse(w, &model.APIError{
			Kind:    model.KindValidation,
			Status:  http.StatusMethodNotAllowed,
			Message: "Method not allowed",
		})
		return
	}

	cleaned := path.Clean("/" + r.URL.Path)
	if cleaned != "/" {
		info, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))))
		if err == nil && !info.IsDir() {
			h.fileServer.ServeHTTP(w, r)
			return
		}
	}

	index := filepath.Join(h.dir, indexFile)
	if _, err := os.Stat(index); err != nil {
		middleware.WriteErrorResponse(w, model.NewNotFoundError("Not found"))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
