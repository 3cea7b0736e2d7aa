package status

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gatebot/entity"
	"gatebot/lib/api/response"
	"gatebot/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Status(ctx context.Context) (*entity.Status, error)
}

func Get(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.status")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("status service not available")
			render.JSON(w, r, response.Error("Status not available"))
			return
		}

		status, err := handler.Status(r.Context())
		if err != nil {
			log.Error("status read", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(status))
	}
}
