package settings

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gatebot/entity"
	"gatebot/lib/api/response"
	"gatebot/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Setting(ctx context.Context, key string) (*entity.Setting, error)
	SaveSetting(ctx context.Context, setting *entity.Setting) error
}

func Get(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.settings")
		key := chi.URLParam(r, "key")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("key", key),
		)

		if handler == nil {
			log.Error("settings service not available")
			render.JSON(w, r, response.Error("Settings not available"))
			return
		}

		setting, err := handler.Setting(r.Context(), key)
		if err != nil {
			log.Error("setting read", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}

		render.JSON(w, r, response.Ok(setting))
	}
}

func Put(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.settings")

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("settings service not available")
			render.JSON(w, r, response.Error("Settings not available"))
			return
		}

		setting := &entity.Setting{}
		if err := render.Bind(r, setting); err != nil {
			log.Warn("invalid request body", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		if err := handler.SaveSetting(r.Context(), setting); err != nil {
			log.Error("setting save", sl.Err(err))
			render.JSON(w, r, response.Error(fmt.Sprintf("Request failed: %v", err)))
			return
		}
		log.With(
			slog.String("key", setting.Key),
		).Debug("setting saved")

		render.JSON(w, r, response.Ok(setting))
	}
}
