package handler

import (
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
)

// Health はプロセスの死活を返す。上流APIの状態は見ない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
