// internal/app/features/home/handler.go
package home

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"

	"github.com/opencourt/tournhub/internal/app/system/authz"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

type homePageData struct {
	Title      string
	IsLoggedIn bool
	IsGuest    bool
	Role       string
	UserName   string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	role, name, _, signedIn := authz.UserCtx(r)

	data := homePageData{
		Title:      "Welcome",
		IsLoggedIn: signedIn,
		IsGuest:    authz.IsGuest(r),
		Role:       role,
		UserName:   name,
	}

	templates.Render(w, r, "home", data)
}
